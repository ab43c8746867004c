package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"okra/internal/logger"
)

// 中文说明：
// OKX V5 公共行情接口客户端（无需鉴权）。
// tickers 批量返回全市场现货快照；资金费率接口只支持单 instId，
// 故仅对配置的风向标币种并发查询，作为大盘情绪参考。

const okxDefaultBaseURL = "https://www.okx.com"

type OKXSource struct {
	client *resty.Client
}

func NewOKXSource(baseURL string) *OKXSource {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = okxDefaultBaseURL
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetHeader("Content-Type", "application/json").
		// 模拟浏览器 UA 以避免部分反爬
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	return &OKXSource{client: c}
}

func (s *OKXSource) Name() string { return "okx" }

type okxEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (s *OKXSource) get(ctx context.Context, path string, params map[string]string, out any) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("okx http %d: %s", resp.StatusCode(), resp.String())
	}
	var env okxEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("解析 OKX 响应失败: %w", err)
	}
	if env.Code != "0" {
		return fmt.Errorf("okx api 错误: code=%s msg=%s", env.Code, env.Msg)
	}
	return json.Unmarshal(env.Data, out)
}

// Tickers 获取全部现货行情，仅保留 USDT 交易对。
func (s *OKXSource) Tickers(ctx context.Context) ([]Ticker, error) {
	var rows []struct {
		InstID    string `json:"instId"`
		Last      string `json:"last"`
		Open24h   string `json:"open24h"`
		High24h   string `json:"high24h"`
		Low24h    string `json:"low24h"`
		VolCcy24h string `json:"volCcy24h"`
	}
	if err := s.get(ctx, "/api/v5/market/tickers", map[string]string{"instType": "SPOT"}, &rows); err != nil {
		return nil, err
	}
	out := make([]Ticker, 0, len(rows))
	for _, r := range rows {
		if !strings.HasSuffix(r.InstID, "-USDT") {
			continue
		}
		t, ok := parseTicker(r.InstID, r.Last, r.Open24h, r.High24h, r.Low24h, r.VolCcy24h)
		if !ok {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("okx 返回空行情")
	}
	return out, nil
}

func parseTicker(instID string, fields ...string) (Ticker, bool) {
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Ticker{}, false
		}
		vals[i] = v
	}
	return Ticker{
		InstID:    instID,
		Last:      vals[0],
		Open24h:   vals[1],
		High24h:   vals[2],
		Low24h:    vals[3],
		VolCcy24h: vals[4],
	}, true
}

// Candles 获取最近 limit 根 K 线，转换为时间正序。
func (s *OKXSource) Candles(ctx context.Context, instID, bar string, limit int) ([]Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows [][]string
	err := s.get(ctx, "/api/v5/market/candles", map[string]string{
		"instId": instID,
		"bar":    bar,
		"limit":  strconv.Itoa(limit),
	}, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]Candle, 0, len(rows))
	// OKX 返回时间倒序，逆序遍历得到正序
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		if len(r) < 6 {
			continue
		}
		ts, err := strconv.ParseInt(r[0], 10, 64)
		if err != nil {
			continue
		}
		o, err1 := strconv.ParseFloat(r[1], 64)
		h, err2 := strconv.ParseFloat(r[2], 64)
		l, err3 := strconv.ParseFloat(r[3], 64)
		c, err4 := strconv.ParseFloat(r[4], 64)
		v, err5 := strconv.ParseFloat(r[5], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		out = append(out, Candle{Ts: ts, Open: o, High: h, Low: l, Close: c, Volume: v})
	}
	return out, nil
}

// FundingRates 并发查询各风向标币种的永续资金费率，返回 {现货instId: 百分比}。
// 单个币种失败只记日志并跳过，不影响其余结果。
func (s *OKXSource) FundingRates(ctx context.Context, instIDs []string) (map[string]float64, error) {
	rates := make(map[string]float64, len(instIDs))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range instIDs {
		spotID := id
		g.Go(func() error {
			swapID := spotID + "-SWAP"
			var rows []struct {
				FundingRate string `json:"fundingRate"`
			}
			if err := s.get(ctx, "/api/v5/public/funding-rate", map[string]string{"instId": swapID}, &rows); err != nil {
				logger.Debugf("获取 %s 资金费率失败: %v", swapID, err)
				return nil
			}
			if len(rows) == 0 {
				return nil
			}
			v, err := strconv.ParseFloat(rows[0].FundingRate, 64)
			if err != nil {
				return nil
			}
			mu.Lock()
			rates[spotID] = v * 100 // 转为百分比
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rates, err
	}
	return rates, nil
}
