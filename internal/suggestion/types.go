package suggestion

// Type 表示建议动作。
type Type string

const (
	TypeBuy  Type = "buy"
	TypeSell Type = "sell"
	TypeWait Type = "wait"
)

// 等待建议不指向任何栏位或物品。
const noTarget = -1

// Suggestion 为返回给客户端的单条操作建议。
type Suggestion struct {
	Type      Type      `json:"type"`
	BoxID     int       `json:"box_id"`
	ItemID    int       `json:"item_id"`
	Price     int       `json:"price"`
	Quantity  int       `json:"quantity"`
	Name      string    `json:"name"`
	CommandID int64     `json:"command_id"`
	Message   string    `json:"message"`
	Graph     GraphData `json:"graph_data"`
}

// IsWait 判断是否为等待建议。
func (s Suggestion) IsWait() bool {
	return s.Type == TypeWait
}

// GraphData 为客户端价格面板展示的数据，未请求时为空值。
type GraphData struct {
	ItemID      int     `json:"item_id"`
	Name        string  `json:"name"`
	BuyPrice    int     `json:"buy_price"`
	SellPrice   int     `json:"sell_price"`
	DailyVolume float64 `json:"daily_volume"`
}

func wait(message string) Suggestion {
	return Suggestion{
		Type:    TypeWait,
		BoxID:   noTarget,
		ItemID:  noTarget,
		Message: message,
	}
}

const (
	msgWaiting  = "Waiting for a new opportunity."
	msgPaused   = "Suggestions are paused."
	msgNoSlot   = "Waiting for a free offer slot."
	msgSellOnly = "Sell-only mode, nothing to sell yet."
)
