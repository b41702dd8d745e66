package usecase

import (
	"context"
	"encoding/json"

	"ecorder/internal/domain/model"
	"ecorder/internal/events"
	"ecorder/internal/logging"
	"ecorder/internal/metrics"

	"go.uber.org/zap"
)

// StockPolicy は在庫の戻し方の設定
type StockPolicy struct {
	// 支払い却下でキャンセルになった注文の在庫を戻す
	ReleaseOnPaymentReject bool
	// 返金承認で在庫を戻す
	RestockOnRefund bool
}

func DefaultStockPolicy() StockPolicy {
	return StockPolicy{ReleaseOnPaymentReject: true}
}

// コミット後の副作用（イベント送信とメトリクス）。どちらも失敗しても処理結果は変えない
type notifier struct {
	publisher events.Publisher
	metrics   *metrics.Metrics
}

func (n notifier) orderEvent(ctx context.Context, t events.Type, o model.Order, actorID int64) {
	n.metrics.Transition(string(t))
	if n.publisher == nil {
		return
	}

	ev := events.NewOrderEvent(t, o.ID, o.UserID, string(o.Status), o.TotalAmount)
	ev.ActorID = actorID
	if err := n.publisher.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("publish order event failed",
			zap.String("type", string(t)),
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
	}
}

// 監査ログのbefore/after用
func auditJSON(v map[string]interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BulkResult は一括操作の1件ごとの結果
type BulkResult struct {
	ID    int64     `json:"id"`
	OK    bool      `json:"ok"`
	Code  ErrorCode `json:"code,omitempty"`
	Error string    `json:"error,omitempty"`
}

const maxBulkIDs = 100

func validateBulkIDs(ids []int64) error {
	if len(ids) == 0 {
		return errValidation("ids required")
	}
	if len(ids) > maxBulkIDs {
		return errValidation("too many ids")
	}
	for _, id := range ids {
		if id <= 0 {
			return errValidation("invalid id")
		}
	}
	return nil
}

// 1件ずつ別トランザクションで実行し、失敗しても残りは続ける
func runBulk(ids []int64, fn func(id int64) error) []BulkResult {
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		err := fn(id)
		if err == nil {
			results = append(results, BulkResult{ID: id, OK: true})
			continue
		}
		res := BulkResult{ID: id, Code: CodeInternal, Error: "internal error"}
		if he, ok := AsHTTPError(err); ok {
			res.Code = he.Code
			res.Error = he.Message
		}
		results = append(results, res)
	}
	return results
}
