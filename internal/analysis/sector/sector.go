package sector

import (
	"context"
	"encoding/json"
	"os"

	"okra/internal/logger"
	"okra/internal/market"
)

// 中文说明：
// 币种赛道识别。优先级：内存缓存 -> 本地配置（coins_data.json）-> AI 批量识别。
// 单币种实时查 LLM 太慢，因此 Lookup 永不触网；未知币种统一通过
// UpdateWithAI 批量补齐后写入缓存。

// Classifier 批量识别币种赛道的能力（由 AI 客户端实现）。
type Classifier interface {
	ClassifySectors(ctx context.Context, coins []string) (map[string]string, error)
}

// 批量识别分片大小，避免单次 token 溢出
const classifyChunk = 20

type Resolver struct {
	local map[string]string // 本地兜底：币种 -> 赛道
	cache map[string]string // AI 识别结果缓存
}

// NewResolver 从本地配置文件加载赛道兜底数据。
// 文件缺失或损坏仅告警，返回可用（但仅依赖 AI）的解析器。
func NewResolver(dataPath string) *Resolver {
	r := &Resolver{local: map[string]string{}, cache: map[string]string{}}
	data, err := os.ReadFile(dataPath)
	if err != nil {
		logger.Warnf("加载本地赛道数据失败: %v", err)
		return r
	}
	var doc struct {
		Sectors map[string][]string `json:"sectors"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Errorf("解析本地赛道数据失败: %v", err)
		return r
	}
	for sec, coins := range doc.Sectors {
		for _, coin := range coins {
			r.local[coin] = sec
		}
	}
	return r
}

// Lookup 查询币种所属赛道，instID 可带 -USDT 后缀。
func (r *Resolver) Lookup(instID string) string {
	base := market.BaseCoin(instID)
	if sec, ok := r.cache[base]; ok {
		return sec
	}
	if sec, ok := r.local[base]; ok {
		return sec
	}
	return "Unknown"
}

// UpdateWithAI 对列表中仍未知的币种分片调用 AI 识别并写入缓存。
// 识别失败只记日志；已知币种不会重复请求。
func (r *Resolver) UpdateWithAI(ctx context.Context, cls Classifier, instIDs []string) {
	if cls == nil {
		return
	}
	var unknown []string
	seen := map[string]struct{}{}
	for _, id := range instIDs {
		base := market.BaseCoin(id)
		if _, dup := seen[base]; dup {
			continue
		}
		seen[base] = struct{}{}
		if r.Lookup(id) == "Unknown" {
			unknown = append(unknown, base)
		}
	}
	if len(unknown) == 0 {
		return
	}
	logger.Infof("使用 AI 识别 %d 个新币种的赛道...", len(unknown))
	for i := 0; i < len(unknown); i += classifyChunk {
		end := i + classifyChunk
		if end > len(unknown) {
			end = len(unknown)
		}
		result, err := cls.ClassifySectors(ctx, unknown[i:end])
		if err != nil {
			logger.Errorf("AI 赛道识别失败: %v", err)
			continue
		}
		for coin, sec := range result {
			r.cache[coin] = sec
		}
		logger.Infof("AI 识别到 %d 个赛道", len(result))
	}
}
