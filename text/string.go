// Package text 提供了输入行切分与字符串脱敏等基础工具。
package text

import (
	"regexp"
	"strings"

	"github.com/wyfcoding/beaconrange/utils"
	"github.com/wyfcoding/beaconrange/xerrors"
)

// DefaultDelimiter 默认分隔符：空白与常见标点。减号不在其中，负数读数得以保留。
const DefaultDelimiter = `[\s,./?;:!"]+`

// Tokenizer 按正则分隔符把一行文本切成 token。
type Tokenizer struct {
	delim      *regexp.Regexp
	ignoreCase bool
}

// NewTokenizer 编译分隔符，pattern 为空时使用 DefaultDelimiter。
func NewTokenizer(pattern string, ignoreCase bool) (*Tokenizer, error) {
	if pattern == "" {
		pattern = DefaultDelimiter
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, xerrors.Configuration("invalid delimiter pattern", err).WithContext("pattern", pattern)
	}
	return &Tokenizer{delim: re, ignoreCase: ignoreCase}, nil
}

// Tokens 切分一行：去首尾空白，按需转小写，丢弃空 token。
func (t *Tokenizer) Tokens(line string) []string {
	parts := t.delim.Split(strings.TrimSpace(line), -1)
	parts = utils.Map(parts, strings.TrimSpace)
	if t.ignoreCase {
		parts = utils.Map(parts, strings.ToLower)
	}
	return utils.Filter(parts, func(s string) bool { return s != "" })
}

// TokensAll 依次切分多行，保持行内与行间顺序。
func (t *Tokenizer) TokensAll(lines []string) [][]string {
	return utils.Map(lines, t.Tokens)
}

// Mask 字符串脱敏处理（保留前 prefixLen 位和后 suffixLen 位，中间用 * 代替）。
func Mask(s string, prefixLen, suffixLen int) string {
	if len(s) <= prefixLen+suffixLen {
		return s
	}

	return s[:prefixLen] + "****" + s[len(s)-suffixLen:]
}

// IsAnyEmpty 检查是否有任意一个字符串为空。
func IsAnyEmpty(ss ...string) bool {
	for _, s := range ss {
		if strings.TrimSpace(s) == "" {
			return true
		}
	}

	return false
}
