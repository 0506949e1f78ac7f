package idgen

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// InviteAlphabet 去掉易混淆字符（0/O、1/I/L）后的 31 个字符
const InviteAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// InviteBodyLength 邀请码随机部分长度
const InviteBodyLength = 4

// InviteCode 生成 "前缀-XXXX" 形式的邀请码
func InviteCode(prefix string) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(prefix))
	b.WriteByte('-')
	max := big.NewInt(int64(len(InviteAlphabet)))
	for i := 0; i < InviteBodyLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand 只有在系统熵源不可用时才会失败
			panic(err)
		}
		b.WriteByte(InviteAlphabet[n.Int64()])
	}
	return b.String()
}

// NormalizeInviteCode 规范化用户输入的邀请码。
// 接受 "7k2x"、"MALL7K2X"、"mall-7k2x" 等写法，返回 "MALL-7K2X"；格式不合法返回 false
func NormalizeInviteCode(prefix, input string) (string, bool) {
	prefix = strings.ToUpper(prefix)
	code := strings.ToUpper(strings.TrimSpace(input))
	code = strings.ReplaceAll(code, " ", "")

	var body string
	switch {
	case strings.HasPrefix(code, prefix+"-"):
		body = strings.TrimPrefix(code, prefix+"-")
	case strings.HasPrefix(code, prefix) && len(code) == len(prefix)+InviteBodyLength:
		body = strings.TrimPrefix(code, prefix)
	case len(code) == InviteBodyLength:
		body = code
	default:
		return "", false
	}

	if len(body) != InviteBodyLength {
		return "", false
	}
	for _, r := range body {
		if !strings.ContainsRune(InviteAlphabet, r) {
			return "", false
		}
	}
	return prefix + "-" + body, true
}
