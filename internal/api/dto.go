package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"flip-advisor/internal/account"
	"flip-advisor/internal/history"
	"flip-advisor/internal/session"
)

// accountStatusRequest 为客户端上报的账户状态。
type accountStatusRequest struct {
	Offers         []account.Offer         `json:"offers"`
	Items          []account.InventoryItem `json:"items"`
	IsMember       bool                    `json:"is_member"`
	DisplayName    string                  `json:"display_name"`
	SellOnly       bool                    `json:"sell_only"`
	F2POnly        bool                    `json:"f2p_only"`
	BlockedItems   []int                   `json:"blocked_items"`
	Timeframe      int                     `json:"timeframe"`
	SkipSuggestion skipFlag                `json:"skip_suggestion"`
	ItemToSkip     int                     `json:"item_to_skip"`
	Paused         bool                    `json:"is_suggestions_paused"`
	SendGraphData  bool                    `json:"send_graph_data"`
}

// skipFlag 兼容两种上报方式：布尔值表示跳过 item_to_skip，整数则直接为物品编号。
type skipFlag struct {
	set    bool
	itemID int
}

func (f *skipFlag) UnmarshalJSON(data []byte) error {
	*f = skipFlag{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.set = b
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("skip_suggestion 必须为布尔值或物品编号: %s", data)
	}
	f.set = n > 0
	f.itemID = n
	return nil
}

func (r accountStatusRequest) update() session.Update {
	skip := 0
	if r.SkipSuggestion.set {
		skip = r.ItemToSkip
		if skip <= 0 {
			skip = r.SkipSuggestion.itemID
		}
	}
	return session.Update{
		Offers:        r.Offers,
		Items:         r.Items,
		SellOnly:      r.SellOnly,
		F2POnly:       r.F2POnly,
		BlockedItems:  r.BlockedItems,
		SkipItem:      skip,
		Paused:        r.Paused,
		SendGraphData: r.SendGraphData,
	}
}

type priceRequest struct {
	ItemID int `json:"item_id"`
}

type priceResponse struct {
	ItemID    int  `json:"item_id"`
	BuyPrice  int  `json:"buy_price"`
	SellPrice int  `json:"sell_price"`
	Available bool `json:"available"`
}

type transactionsRequest struct {
	DisplayName  string          `json:"display_name"`
	Transactions []history.Trade `json:"transactions"`
}

type transactionsResponse struct {
	Status   string `json:"status"`
	Accepted int    `json:"accepted"`
}
