// Package config 加载一次 run 的 YAML 配置：来源表、schema、选择表达式、划分策略、
// 算法列表与选项覆盖、并发与超时、远程算法和结果 sink。
//
//	exposure: 36000
//	signal: {name: ttH, path: ttH.csv, cross_section: 0.5071, positive: 100000, negative: 0}
//	backgrounds:
//	  - {name: ttbar, path: ttbar.csv, cross_section: 831.76, positive: 2000000, negative: 0}
//	schema: {variables: [ht, njet], spectators: [run]}
//	selection: njet >= 4.0
//	split: {ratio: 0.5, mode: random, seed: 100}
//	methods: [BDT, Fisher]
//	options:
//	  BDT: "NTrees=200:MaxDepth=2"
//	  Fisher: {H: false, CreateMVAPdfs: true}
//	sink: {dir: results}
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/metrics"
	"github.com/rushteam/mvakit/pkg/conv"
	"github.com/rushteam/mvakit/registry"
	"github.com/rushteam/mvakit/weight"
)

var validate = validator.New()

// SourceConfig 是来源表的一行，外加读取该来源所需的字段。
type SourceConfig struct {
	weight.Source `yaml:",inline"`

	// WeightColumn 非空时作为逐行权重列（乘在来源权重上）。
	WeightColumn     string `yaml:"weight_column,omitempty"`
	AllowExtraFields bool   `yaml:"allow_extra_fields,omitempty"`
}

// RemoteConfig 声明一个由外部训练服务实现的算法（family 为 RPC）。
type RemoteConfig struct {
	Name     string        `yaml:"name" validate:"required"`
	Endpoint string        `yaml:"endpoint" validate:"required,url"`
	Timeout  time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`
	Options  string        `yaml:"options,omitempty"`

	// Enabled 为 true 时在未指定 methods 的情况下也参与训练。
	Enabled bool `yaml:"enabled,omitempty"`
}

// KVConfig 配置 KV 结果存储。
type KVConfig struct {
	Backend string `yaml:"backend" validate:"oneof=memory redis badger"`
	Addr    string `yaml:"addr,omitempty" validate:"required_if=Backend redis"`
	DB      int    `yaml:"db,omitempty" validate:"gte=0"`
	Path    string `yaml:"path,omitempty" validate:"required_if=Backend badger"`
	Prefix  string `yaml:"prefix,omitempty"`
}

// SinkConfig 配置结果输出；Dir 与 KV 可以同时启用。
type SinkConfig struct {
	Dir string    `yaml:"dir,omitempty"`
	KV  *KVConfig `yaml:"kv,omitempty"`
}

// RunConfig 是一次 run 的完整配置。
type RunConfig struct {
	Exposure    float64            `yaml:"exposure" validate:"gt=0"`
	Signal      SourceConfig       `yaml:"signal"`
	Backgrounds []SourceConfig     `yaml:"backgrounds" validate:"required,min=1,dive"`
	Schema      core.FeatureSchema `yaml:"schema"`
	Selection   string             `yaml:"selection,omitempty"`
	Split       core.SplitPolicy   `yaml:"split"`

	// Methods 为空时使用目录的默认启用集合。
	Methods []string `yaml:"methods,omitempty"`

	// Options 按算法名覆盖选项，值可以是选项串或 key -> value 的映射。
	Options map[string]any `yaml:"options,omitempty"`

	Remote []RemoteConfig `yaml:"remote,omitempty" validate:"dive"`

	Workers          int           `yaml:"workers" validate:"gte=1"`
	LoadConcurrency  int           `yaml:"load_concurrency,omitempty" validate:"gte=0"`
	AlgorithmTimeout time.Duration `yaml:"algorithm_timeout,omitempty" validate:"gte=0"`
	RankBy           string        `yaml:"rank_by,omitempty"`
	SkipOvertraining bool          `yaml:"skip_overtraining,omitempty"`

	// DataDir 是相对来源路径的基准目录，默认是配置文件所在目录。
	DataDir string     `yaml:"data_dir,omitempty"`
	Sink    SinkConfig `yaml:"sink"`
}

// Default 返回带默认值的配置。
func Default() *RunConfig {
	return &RunConfig{
		Split:   core.DefaultSplitPolicy(),
		Workers: 1,
	}
}

// Load 读取并校验 YAML 配置文件。
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse 解析 YAML 内容。baseDir 用作 DataDir 的默认值及其相对路径基准。
func Parse(data []byte, baseDir string) (*RunConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, "parse yaml", err)
	}
	switch {
	case cfg.DataDir == "":
		cfg.DataDir = baseDir
	case !filepath.IsAbs(cfg.DataDir) && baseDir != "":
		cfg.DataDir = filepath.Join(baseDir, cfg.DataDir)
	}
	// 输出路径同样相对于配置文件所在目录
	cfg.Sink.Dir = resolve(baseDir, cfg.Sink.Dir)
	if cfg.Sink.KV != nil {
		cfg.Sink.KV.Path = resolve(baseDir, cfg.Sink.KV.Path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolve(baseDir, p string) string {
	if p == "" || baseDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// Validate 做结构校验，并检查来源名称唯一、划分策略与选项覆盖合法。
// 算法名是否存在由 registry 在 Enable/WithOptions 时判断。
func (c *RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return core.WrapDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, "invalid config", describe(err))
	}
	if err := c.Split.Validate(); err != nil {
		return err
	}
	if c.RankBy != "" && !slices.Contains(metrics.Keys(), metrics.Key(c.RankBy)) {
		return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput,
			fmt.Sprintf("unknown rank_by %q (valid: %v)", c.RankBy, metrics.Keys()))
	}
	seen := make(map[string]struct{})
	for _, s := range c.AllSources() {
		if _, dup := seen[s.Name]; dup {
			return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput,
				fmt.Sprintf("duplicate source name %q", s.Name))
		}
		seen[s.Name] = struct{}{}
	}
	remote := make(map[string]struct{})
	for _, r := range c.Remote {
		if _, dup := remote[r.Name]; dup {
			return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput,
				fmt.Sprintf("duplicate remote algorithm %q", r.Name))
		}
		remote[r.Name] = struct{}{}
		if _, err := registry.ParseOptions(r.Options); err != nil {
			return fmt.Errorf("remote algorithm %q: %w", r.Name, err)
		}
	}
	_, err := c.OptionOverrides()
	return err
}

// AllSources 返回信号在前、本底按声明顺序排列的来源表。
func (c *RunConfig) AllSources() []SourceConfig {
	out := make([]SourceConfig, 0, 1+len(c.Backgrounds))
	out = append(out, c.Signal)
	return append(out, c.Backgrounds...)
}

// WeightSources 返回用于计算权重的来源表（与 AllSources 顺序一致）。
func (c *RunConfig) WeightSources() []weight.Source {
	srcs := c.AllSources()
	out := make([]weight.Source, len(srcs))
	for i, s := range srcs {
		out[i] = s.Source
	}
	return out
}

// OptionOverrides 把 Options 转换为按算法名的 registry.Options。
//
// 映射形式中 true 写作裸 key，false 写作 !key，其余值格式化为 key=value；
// key 按字典序排列。
func (c *RunConfig) OptionOverrides() (map[string]registry.Options, error) {
	out := make(map[string]registry.Options, len(c.Options))
	for _, name := range conv.SortedKeys(c.Options) {
		opts, err := toOptions(c.Options[name])
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput,
				fmt.Sprintf("options of %q", name), err)
		}
		out[name] = opts
	}
	return out, nil
}

func toOptions(v any) (registry.Options, error) {
	if s, ok := conv.ToString(v); ok {
		return registry.ParseOptions(s)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected option string or mapping, got %T", v)
	}
	tokens := make([]string, 0, len(m))
	for _, k := range conv.SortedKeys(m) {
		switch val := m[k].(type) {
		case bool:
			if val {
				tokens = append(tokens, k)
			} else {
				tokens = append(tokens, "!"+k)
			}
		default:
			s, ok := conv.FormatScalar(val)
			if !ok {
				return nil, fmt.Errorf("option %q: unsupported value %v", k, val)
			}
			tokens = append(tokens, k+"="+s)
		}
	}
	return registry.ParseOptions(strings.Join(tokens, ":"))
}

// describe 把 validator 的错误整理为一行可读信息。
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
