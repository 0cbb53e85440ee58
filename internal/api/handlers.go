package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"flip-advisor/internal/account"
	"flip-advisor/internal/market"
	"flip-advisor/internal/monitor"
	"flip-advisor/internal/session"
	"flip-advisor/internal/suggestion"
)

const (
	// HeaderSuggestionLength 标记响应体中建议段的字节数，其余为图表段。
	HeaderSuggestionLength = "X-Suggestion-Content-Length"

	maxBodyBytes  = 1 << 20
	maxEventLimit = 1000
)

func (s *Server) routes() {
	s.mux.HandleFunc("POST /suggestion", s.handleSuggestion)
	s.mux.HandleFunc("POST /prices", s.handlePrices)
	s.mux.HandleFunc("POST /profit-tracking/client-transactions", s.handleTransactions)
	s.mux.HandleFunc("GET /profit-tracking/summary", s.handleSummary)
	s.mux.HandleFunc("GET /events", s.handleEvents)
}

func (s *Server) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	var req accountStatusRequest
	if !s.decode(w, r, &req) {
		return
	}

	var result suggestion.Suggestion
	err := s.deps.Sessions.With(req.DisplayName, req.update(), func(state *account.State) error {
		var genErr error
		result, genErr = s.deps.Engine.Generate(r.Context(), state)
		return genErr
	})
	switch {
	case errors.Is(err, session.ErrEmptyAccount):
		http.Error(w, "display_name 不能为空", http.StatusBadRequest)
		return
	case errors.Is(err, market.ErrMarketDataUnavailable):
		s.deps.Events.RecordError(r.Context(), "行情不可用", err, map[string]interface{}{"account": req.DisplayName})
		http.Error(w, "market data unavailable", http.StatusServiceUnavailable)
		return
	case err != nil:
		s.deps.Events.RecordError(r.Context(), "生成建议失败", err, map[string]interface{}{"account": req.DisplayName})
		s.logger.Error("生成建议失败", zap.String("account", req.DisplayName), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sections, err := suggestion.EncodeSections(result)
	if err != nil {
		s.logger.Error("编码建议失败", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	body := sections.Body()
	w.Header().Set("Content-Type", suggestion.ContentType)
	w.Header().Set(HeaderSuggestionLength, strconv.Itoa(len(sections.Suggestion)))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("写入建议响应失败", zap.Error(err))
	}
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ItemID <= 0 {
		http.Error(w, "item_id 必须为正整数", http.StatusBadRequest)
		return
	}

	latest, err := s.deps.Prices.FetchLatest(r.Context(), req.ItemID)
	if err != nil {
		s.logger.Warn("查询最新价格失败", zap.Int("item_id", req.ItemID), zap.Error(err))
		http.Error(w, "upstream price lookup failed", http.StatusBadGateway)
		return
	}

	s.writeJSON(w, http.StatusOK, priceResponse{
		ItemID:    req.ItemID,
		BuyPrice:  latest.Low,
		SellPrice: latest.High,
		Available: latest.Available,
	})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	var req transactionsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		http.Error(w, "display_name 不能为空", http.StatusBadRequest)
		return
	}

	accepted := 0
	for _, trade := range req.Transactions {
		inserted, err := s.deps.History.Append(r.Context(), req.DisplayName, trade)
		if err != nil {
			s.logger.Error("保存交易失败", zap.String("account", req.DisplayName), zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if inserted {
			accepted++
			s.deps.Events.RecordTrade(r.Context(), req.DisplayName, trade)
		}
	}

	s.writeJSON(w, http.StatusOK, transactionsResponse{Status: "ok", Accepted: accepted})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("display_name"))
	if name == "" {
		http.Error(w, "display_name 不能为空", http.StatusBadRequest)
		return
	}

	summary, err := s.deps.History.Summarize(r.Context(), name)
	if err != nil {
		s.logger.Error("汇总交易失败", zap.String("account", name), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 200
	if qs := q.Get("limit"); qs != "" {
		if v, err := strconv.Atoi(qs); err == nil && v > 0 {
			if v > maxEventLimit {
				v = maxEventLimit
			}
			limit = v
		}
	}

	eventType := monitor.EventType("")
	if typ := strings.TrimSpace(q.Get("type")); typ != "" {
		eventType = monitor.EventType(strings.ToLower(typ))
	}

	events, err := s.deps.Events.ListEvents(r.Context(), eventType, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "读取请求失败", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		http.Error(w, "请求体不是合法 JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("写入响应失败", zap.Error(err))
	}
}
