package market

import "time"

// ItemMetadata 为目录中单个物品的静态信息。
type ItemMetadata struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Limit   int    `json:"limit"`
	Members bool   `json:"members"`
}

// PriceStat 为滚动窗口（默认5分钟）内的均价与成交量。
// 任一字段为 nil 表示该窗口内没有对应方向的成交。
//
// 注意上游命名：AvgLowPrice 是挂买单能成交的价格，AvgHighPrice 是挂卖单能成交的价格。
type PriceStat struct {
	AvgHighPrice    *int `json:"avgHighPrice"`
	HighPriceVolume *int `json:"highPriceVolume"`
	AvgLowPrice     *int `json:"avgLowPrice"`
	LowPriceVolume  *int `json:"lowPriceVolume"`
}

// BuyPrice 返回买入参考价，缺失时 ok 为 false。
func (p PriceStat) BuyPrice() (int, bool) {
	return positive(p.AvgLowPrice)
}

// SellPrice 返回卖出参考价，缺失时 ok 为 false。
func (p PriceStat) SellPrice() (int, bool) {
	return positive(p.AvgHighPrice)
}

// TotalVolume 返回窗口内买卖两侧成交量之和。
func (p PriceStat) TotalVolume() int {
	return valueOrZero(p.LowPriceVolume) + valueOrZero(p.HighPriceVolume)
}

// Snapshot 是同一次拉取得到的目录与价格统计，发布后不可修改。
type Snapshot struct {
	Metadata  map[int]ItemMetadata
	Stats     map[int]PriceStat
	FetchedAt time.Time
}

// LatestPrice 为单个物品的最新成交价。
type LatestPrice struct {
	ItemID    int
	High      int
	Low       int
	HighTime  time.Time
	LowTime   time.Time
	Available bool
}

func positive(v *int) (int, bool) {
	if v == nil || *v <= 0 {
		return 0, false
	}
	return *v, true
}

func valueOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
