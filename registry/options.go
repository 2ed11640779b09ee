package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rushteam/mvakit/core"
)

// Option 是选项串中的一个 token。
//
//	NTrees=850  -> {Key: "NTrees", Value: "850"}
//	!H          -> {Key: "H", Value: "false"}
//	EffSel      -> {Key: "EffSel", Value: "true"}
//
// Token 保留原文，String() 时原样拼回。
type Option struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Token string `json:"-"`
}

// Options 是有序的选项列表，key 在同一个 spec 内唯一。
// registry 只做语法校验，取值含义由算法实现自行解释。
type Options []Option

// ParseOptions 解析冒号分隔的选项串，如 "!H:!V:NTrees=850:BoostType=AdaBoost"。
// 空 token 被忽略；key 为空或重复返回 INVALID_INPUT。
func ParseOptions(s string) (Options, error) {
	var out Options
	for _, tok := range strings.Split(s, ":") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		opt := Option{Token: tok}
		switch {
		case strings.HasPrefix(tok, "!"):
			opt.Key, opt.Value = tok[1:], "false"
		case strings.Contains(tok, "="):
			k, v, _ := strings.Cut(tok, "=")
			opt.Key, opt.Value = strings.TrimSpace(k), strings.TrimSpace(v)
		default:
			opt.Key, opt.Value = tok, "true"
		}
		if opt.Key == "" {
			return nil, core.NewDomainError(core.ModuleRegistry, core.ErrorCodeInvalidInput,
				fmt.Sprintf("options: empty key in token %q", tok))
		}
		out = append(out, opt)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// MustParseOptions 同 ParseOptions，失败时 panic。只用于内置目录。
func MustParseOptions(s string) Options {
	o, err := ParseOptions(s)
	if err != nil {
		panic(err)
	}
	return o
}

// Validate 检查 key 非空且不重复。
func (o Options) Validate() error {
	seen := make(map[string]struct{}, len(o))
	for _, opt := range o {
		if opt.Key == "" {
			return core.NewDomainError(core.ModuleRegistry, core.ErrorCodeInvalidInput, "options: empty key")
		}
		if _, dup := seen[opt.Key]; dup {
			return core.NewDomainError(core.ModuleRegistry, core.ErrorCodeInvalidInput,
				fmt.Sprintf("options: duplicate key %q", opt.Key))
		}
		seen[opt.Key] = struct{}{}
	}
	return nil
}

// Get 返回 key 对应的原始字符串值。
func (o Options) Get(key string) (string, bool) {
	for _, opt := range o {
		if opt.Key == key {
			return opt.Value, true
		}
	}
	return "", false
}

// String 拼回冒号分隔的选项串。
func (o Options) String() string {
	toks := make([]string, len(o))
	for i, opt := range o {
		toks[i] = opt.token()
	}
	return strings.Join(toks, ":")
}

func (o Option) token() string {
	if o.Token != "" {
		return o.Token
	}
	return o.Key + "=" + o.Value
}

// Clone 返回副本。
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	return append(make(Options, 0, len(o)), o...)
}

// Merge 返回合并结果：over 中的 key 覆盖 o 中同名项（保持原位置），新 key 追加在末尾。
func (o Options) Merge(over Options) Options {
	out := o.Clone()
	for _, opt := range over {
		replaced := false
		for i := range out {
			if out[i].Key == opt.Key {
				out[i] = opt
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, opt)
		}
	}
	return out
}

// Map 返回 key -> value。
func (o Options) Map() map[string]string {
	m := make(map[string]string, len(o))
	for _, opt := range o {
		m[opt.Key] = opt.Value
	}
	return m
}

// Bool 读取布尔选项，接受 true/false/T/F/1/0（大小写不敏感）。
func (o Options) Bool(key string, def bool) bool {
	v, ok := o.Get(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "t", "1", "yes":
		return true
	case "false", "f", "0", "no":
		return false
	}
	return def
}

// Int 读取整数选项，非法值返回错误。
func (o Options) Int(key string, def int) (int, error) {
	v, ok := o.Get(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("option %s=%q: %w", key, v, err)
	}
	return n, nil
}

// Float 读取浮点选项。以 % 结尾时按百分比换算为小数（"2.5%" -> 0.025）。
func (o Options) Float(key string, def float64) (float64, error) {
	v, ok := o.Get(key)
	if !ok {
		return def, nil
	}
	scale := 1.0
	if strings.HasSuffix(v, "%") {
		v, scale = strings.TrimSuffix(v, "%"), 0.01
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("option %s=%q: %w", key, v, err)
	}
	return f * scale, nil
}

// Str 读取字符串选项。
func (o Options) Str(key, def string) string {
	if v, ok := o.Get(key); ok {
		return v
	}
	return def
}
