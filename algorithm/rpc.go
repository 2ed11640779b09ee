package algorithm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/registry"
)

// RPCTrainer 把训练委托给外部训练服务（XGBoost、TMVA、PyTorch 等）。
//
// 训练请求 POST {Endpoint}/train：
//
//	{"algorithm": "XGB", "options": "NTrees=100", "variables": ["x", "y"],
//	 "events": [{"features": {"x": 1.2, "y": 0.4}, "label": "signal", "weight": 0.1}, ...]}
//
// 响应：{"model_id": "..."}
//
// 打分请求 POST {Endpoint}/score：
//
//	{"model_id": "...", "features_list": [{"x": 1.2, "y": 0.4}, ...]}
//
// 响应：{"scores": [0.85, 0.72, ...]}
type RPCTrainer struct {
	Algorithm string
	Endpoint  string // 例如 "http://localhost:8080"
	Timeout   time.Duration
	Client    *http.Client
}

func NewRPCTrainer(algorithm, endpoint string, timeout time.Duration) *RPCTrainer {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &RPCTrainer{
		Algorithm: algorithm,
		Endpoint:  strings.TrimRight(endpoint, "/"),
		Timeout:   timeout,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

type rpcEvent struct {
	Features map[string]float64 `json:"features"`
	Label    core.Label         `json:"label"`
	Weight   float64            `json:"weight"`
}

func (t *RPCTrainer) Train(ctx context.Context, data Dataset, opts registry.Options) (Model, error) {
	events := make([]rpcEvent, len(data.Examples))
	for i, ex := range data.Examples {
		events[i] = rpcEvent{
			Features: variables(ex.Features, data.Schema),
			Label:    ex.Label,
			Weight:   ex.Weight,
		}
	}
	req := map[string]any{
		"algorithm": t.Algorithm,
		"options":   opts.String(),
		"variables": data.Schema.Variables,
		"events":    events,
	}
	var resp struct {
		ModelID string `json:"model_id"`
	}
	if err := postJSON(ctx, t.client(), t.Endpoint+"/train", req, &resp); err != nil {
		return nil, err
	}
	if resp.ModelID == "" {
		return nil, fmt.Errorf("rpc train: empty model_id")
	}
	return &RPCModel{
		Endpoint: t.Endpoint,
		ModelID:  resp.ModelID,
		Schema:   data.Schema,
		client:   t.client(),
	}, nil
}

func (t *RPCTrainer) client() *http.Client {
	if t.Client == nil {
		t.Client = &http.Client{Timeout: t.Timeout}
	}
	return t.Client
}

// RPCModel 是远端训练出的模型句柄。
type RPCModel struct {
	Endpoint string             `json:"endpoint"`
	ModelID  string             `json:"model_id"`
	Schema   core.FeatureSchema `json:"schema"`

	client *http.Client
}

// Score 调用远端批量打分接口。
func (m *RPCModel) Score(ctx context.Context, rows []core.FeatureVector) ([]float64, error) {
	if len(rows) == 0 {
		return []float64{}, nil
	}
	featuresList := make([]map[string]float64, len(rows))
	for i, r := range rows {
		featuresList[i] = variables(r, m.Schema)
	}
	req := map[string]any{
		"model_id":      m.ModelID,
		"features_list": featuresList,
	}
	var resp struct {
		Scores []float64 `json:"scores"`
	}
	client := m.client
	if client == nil {
		client = http.DefaultClient
	}
	if err := postJSON(ctx, client, m.Endpoint+"/score", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Scores) != len(rows) {
		return nil, fmt.Errorf("response scores count mismatch: expected %d, got %d", len(rows), len(resp.Scores))
	}
	return resp.Scores, nil
}

// variables 只取训练变量，spectator 不发给训练服务。
func variables(fv core.FeatureVector, schema core.FeatureSchema) map[string]float64 {
	return core.FeatureVector{Values: fv.Values}.Map(schema)
}

func postJSON(ctx context.Context, client *http.Client, url string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("rpc error: status=%d, read body failed: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
