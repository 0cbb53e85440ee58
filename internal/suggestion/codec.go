package suggestion

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ContentType 为建议响应的 MIME 类型。
const ContentType = "application/x-msgpack"

// wireSuggestion 为建议段的紧凑字段名。
type wireSuggestion struct {
	Type      string `msgpack:"t"`
	BoxID     int    `msgpack:"b"`
	ItemID    int    `msgpack:"i"`
	Price     int    `msgpack:"p"`
	Quantity  int    `msgpack:"q"`
	Name      string `msgpack:"n"`
	CommandID int64  `msgpack:"id"`
	Message   string `msgpack:"m"`
}

// wireGraph 为图表段。客户端要求所有序列键存在，未提供的序列编码为 nil。
type wireGraph struct {
	ItemID      int     `msgpack:"id"`
	Name        string  `msgpack:"n"`
	DailyVolume float64 `msgpack:"dv"`
	SellPrice   int     `msgpack:"sp"`
	BuyPrice    int     `msgpack:"bp"`

	Low1hTimes   []int64 `msgpack:"l1ht"`
	Low1hPrices  []int64 `msgpack:"l1hp"`
	High1hTimes  []int64 `msgpack:"h1ht"`
	High1hPrices []int64 `msgpack:"h1hp"`
	Low5mTimes   []int64 `msgpack:"l5mt"`
	Low5mPrices  []int64 `msgpack:"l5mp"`
	High5mTimes  []int64 `msgpack:"h5mt"`
	High5mPrices []int64 `msgpack:"h5mp"`
	LowLatestT   []int64 `msgpack:"llt"`
	LowLatestP   []int64 `msgpack:"llp"`
	HighLatestT  []int64 `msgpack:"hlt"`
	HighLatestP  []int64 `msgpack:"hlp"`

	PredictionTimes     []int64 `msgpack:"pt"`
	PredictionLowMean   []int64 `msgpack:"plm"`
	PredictionLowUpper  []int64 `msgpack:"pliu"`
	PredictionLowLower  []int64 `msgpack:"plil"`
	PredictionHighMean  []int64 `msgpack:"phm"`
	PredictionHighUpper []int64 `msgpack:"phiu"`
	PredictionHighLower []int64 `msgpack:"phil"`
}

// Sections 为分段编码后的响应体。
type Sections struct {
	Suggestion []byte
	Graph      []byte
}

// Body 返回拼接后的响应体：建议段在前，图表段在后。
func (s Sections) Body() []byte {
	body := make([]byte, 0, len(s.Suggestion)+len(s.Graph))
	body = append(body, s.Suggestion...)
	return append(body, s.Graph...)
}

// EncodeSections 将建议编码为两个独立的 msgpack 段。
func EncodeSections(s Suggestion) (Sections, error) {
	head, err := msgpack.Marshal(wireSuggestion{
		Type:      string(s.Type),
		BoxID:     s.BoxID,
		ItemID:    s.ItemID,
		Price:     s.Price,
		Quantity:  s.Quantity,
		Name:      s.Name,
		CommandID: s.CommandID,
		Message:   s.Message,
	})
	if err != nil {
		return Sections{}, fmt.Errorf("suggestion: 编码建议段失败: %w", err)
	}

	graph, err := msgpack.Marshal(wireGraph{
		ItemID:      s.Graph.ItemID,
		Name:        s.Graph.Name,
		DailyVolume: s.Graph.DailyVolume,
		SellPrice:   s.Graph.SellPrice,
		BuyPrice:    s.Graph.BuyPrice,
	})
	if err != nil {
		return Sections{}, fmt.Errorf("suggestion: 编码图表段失败: %w", err)
	}

	return Sections{Suggestion: head, Graph: graph}, nil
}

// DecodeSections 按建议段长度拆分响应体并解码。
func DecodeSections(body []byte, suggestionLen int) (Suggestion, error) {
	if suggestionLen < 0 || suggestionLen > len(body) {
		return Suggestion{}, fmt.Errorf("suggestion: 建议段长度 %d 超出响应体 %d", suggestionLen, len(body))
	}

	var head wireSuggestion
	if err := msgpack.NewDecoder(bytes.NewReader(body[:suggestionLen])).Decode(&head); err != nil {
		return Suggestion{}, fmt.Errorf("suggestion: 解码建议段失败: %w", err)
	}

	var graph wireGraph
	if rest := body[suggestionLen:]; len(rest) > 0 {
		if err := msgpack.Unmarshal(rest, &graph); err != nil {
			return Suggestion{}, fmt.Errorf("suggestion: 解码图表段失败: %w", err)
		}
	}

	return Suggestion{
		Type:      Type(head.Type),
		BoxID:     head.BoxID,
		ItemID:    head.ItemID,
		Price:     head.Price,
		Quantity:  head.Quantity,
		Name:      head.Name,
		CommandID: head.CommandID,
		Message:   head.Message,
		Graph: GraphData{
			ItemID:      graph.ItemID,
			Name:        graph.Name,
			BuyPrice:    graph.BuyPrice,
			SellPrice:   graph.SellPrice,
			DailyVolume: graph.DailyVolume,
		},
	}, nil
}
