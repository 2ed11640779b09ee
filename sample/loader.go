package sample

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/rushteam/mvakit/core"
)

// Source 标识一个外部数据集。
type Source struct {
	Name string
	Path string

	// WeightColumn 非空时，该列作为逐行权重（乘在样本权重上），不进入特征。
	WeightColumn string

	// AllowExtraFields 为 true 时允许行中出现 schema 之外的列（忽略之）。
	AllowExtraFields bool
}

// Record 是 Loader 返回的原始行：列名 -> 数值。
type Record map[string]float64

// Loader 是外部数据读取协作方：只负责把一个来源读成原始行，不做 schema 校验。
type Loader interface {
	Name() string
	Read(ctx context.Context, src Source) ([]Record, error)
}

// MemoryLoader 从内存读取，按 Source.Name 索引。用于测试/原型。
type MemoryLoader struct {
	Data map[string][]Record
}

func NewMemoryLoader() *MemoryLoader {
	return &MemoryLoader{Data: make(map[string][]Record)}
}

func (l *MemoryLoader) Name() string { return "memory" }

// Put 写入一个来源的行。
func (l *MemoryLoader) Put(name string, rows []Record) {
	if l.Data == nil {
		l.Data = make(map[string][]Record)
	}
	l.Data[name] = rows
}

func (l *MemoryLoader) Read(_ context.Context, src Source) ([]Record, error) {
	rows, ok := l.Data[src.Name]
	if !ok {
		return nil, core.NewDomainError(core.ModuleSample, core.ErrorCodeNotFound,
			fmt.Sprintf("source %q not found in memory loader", src.Name))
	}
	return rows, nil
}

// CSVLoader 读取带表头的 CSV，每列必须是数值。
// Path 是 http(s) URL 时通过 HTTP GET 获取，否则按文件读取，相对路径相对于 BaseDir。
type CSVLoader struct {
	BaseDir string

	// Client 用于 URL 来源，为 nil 时使用 10s 超时的默认客户端。
	Client *http.Client
}

func (l *CSVLoader) Name() string { return "csv" }

func (l *CSVLoader) Read(ctx context.Context, src Source) ([]Record, error) {
	path := src.Path
	if path == "" {
		return nil, core.NewDomainError(core.ModuleSample, core.ErrorCodeInvalidInput,
			fmt.Sprintf("source %q: empty path", src.Name))
	}

	var body io.ReadCloser
	if isURL(path) {
		rc, err := l.fetch(ctx, path)
		if err != nil {
			return nil, err
		}
		body = rc
	} else {
		if !filepath.IsAbs(path) && l.BaseDir != "" {
			path = filepath.Join(l.BaseDir, path)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		body = f
	}
	defer body.Close()

	raw, err := gocsv.CSVToMaps(body)
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", path, err)
	}

	rows := make([]Record, 0, len(raw))
	for i, m := range raw {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec := make(Record, len(m))
		for k, v := range m {
			fv, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %q: %w", path, i+1, k, err)
			}
			rec[k] = fv
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func (l *CSVLoader) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch %s: status=%d, body=%s", url, resp.StatusCode, string(b))
	}
	return resp.Body, nil
}

func isURL(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

var (
	_ Loader = (*MemoryLoader)(nil)
	_ Loader = (*CSVLoader)(nil)
)
