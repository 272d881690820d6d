package marketdata

import (
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"cryptosim/internal/models"
)

// jsoniter: разбор кадров - самая горячая точка по аллокациям,
// стандартный encoding/json здесь заметно дороже
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Типы кадров relay
const (
	frameStatus = "status"
	frameTicker = "ticker"
)

// relayFrame - кадр от relay endpoint'а.
// status: состояние upstream соединения relay
// ticker: готовый тикер в каноническом виде
type relayFrame struct {
	Type     string              `json:"type"`
	Upstream bool                `json:"upstream"`
	Data     jsoniter.RawMessage `json:"data"`
}

// parseRelayFrame разбирает кадр relay. Возвращает тип кадра,
// тикер (для frameTicker) и признак наличия upstream (для frameStatus).
func parseRelayFrame(raw []byte) (frameType string, ticker models.Ticker, upstream bool, err error) {
	var frame relayFrame
	if err = json.Unmarshal(raw, &frame); err != nil {
		return "", models.Ticker{}, false, err
	}

	switch frame.Type {
	case frameStatus:
		return frameStatus, models.Ticker{}, frame.Upstream, nil
	case frameTicker:
		if err = json.Unmarshal(frame.Data, &ticker); err != nil {
			return "", models.Ticker{}, false, err
		}
		ticker.UpdatedAt = time.Now()
		return frameTicker, ticker, false, nil
	default:
		// Неизвестные типы кадров игнорируются: relay может эволюционировать
		return frame.Type, models.Ticker{}, false, nil
	}
}

// miniTicker - элемент combined stream Binance (<symbol>@miniTicker)
type miniTicker struct {
	Symbol      string `json:"s"`
	Close       string `json:"c"`
	Open        string `json:"o"`
	High        string `json:"h"`
	Low         string `json:"l"`
	Volume      string `json:"v"`
	QuoteVolume string `json:"q"`
}

// combinedFrame - обёртка combined stream: {"stream":"btcusdt@miniTicker","data":{...}}
type combinedFrame struct {
	Stream string     `json:"stream"`
	Data   miniTicker `json:"data"`
}

// parseUpstreamFrame разбирает кадр прямого подключения к Binance combined stream
func parseUpstreamFrame(raw []byte) (models.Ticker, bool) {
	var frame combinedFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return models.Ticker{}, false
	}
	if frame.Data.Symbol == "" {
		return models.Ticker{}, false
	}
	return frame.Data.toTicker(), true
}

func (m miniTicker) toTicker() models.Ticker {
	last := parsePrice(m.Close)
	open := parsePrice(m.Open)

	var changePercent float64
	if open != 0 {
		changePercent = (last - open) / open * 100
	}

	return models.Ticker{
		Symbol:        m.Symbol,
		LastPrice:     last,
		OpenPrice:     open,
		HighPrice:     parsePrice(m.High),
		LowPrice:      parsePrice(m.Low),
		Volume:        parsePrice(m.Volume),
		QuoteVolume:   parsePrice(m.QuoteVolume),
		ChangePercent: changePercent,
		UpdatedAt:     time.Now(),
	}
}

func parsePrice(value string) float64 {
	result, _ := strconv.ParseFloat(value, 64)
	return result
}
