// Package fixtures provides deterministic demo databases for running the
// tool without Oracle or warehouse access.
package fixtures

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"black-heatmap/internal/idhash"
	"black-heatmap/internal/storage/memory"
	"black-heatmap/internal/table"
)

// Epoch anchors generated timestamps.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const maxDays = 14

var (
	between = regexp.MustCompile(`BETWEEN\s+'([^']*)'\s+AND\s+'([^']*)'`)
	since   = regexp.MustCompile(`>=\s*(?:toDateTime\()?'([^']*)'`)

	names     = []string{"김민준", "이서연", "박지호", "최수아", "정도윤", "강하은", "조예준", "윤지우"}
	cities    = []string{"서울특별시 강남구", "부산광역시 해운대구", "인천광역시 연수구", "대구광역시 수성구", "경기도 성남시"}
	companies = []string{"한빛상사", "누리테크", "미래물산", "-", "자영업"}
	markets   = []struct{ market, ticker string }{
		{"KRW", "BTC"}, {"KRW", "ETH"}, {"KRW", "XRP"}, {"KRW", "SOL"}, {"BTC", "DOGE"}, {"USDT", "ADA"},
	}
)

// MIDs returns n demo MIDs. Every seventh one fails the A...A format check.
func MIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		if i%7 == 6 {
			out[i] = fmt.Sprintf("B%05dX", i+1)
			continue
		}
		out[i] = fmt.Sprintf("A%05dA", i+1)
	}
	return out
}

// WriteWorkbook writes a MID input workbook with a header row.
func WriteWorkbook(path string, mids []string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetCellValue("Sheet1", "A1", "MID"); err != nil {
		return err
	}
	for i, mid := range mids {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue("Sheet1", cell, mid); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

// Oracle answers the identity query. Roughly one MID in ten has no record.
func Oracle() *memory.Connector {
	return memory.NewConnector("oracle").On("cust_mid_map", identity)
}

// Warehouse answers the account and order-book queries.
func Warehouse(name string) *memory.Connector {
	return memory.NewConnector(name).
		On("name: user_join_date", joinDates).
		On("name: user_access_info", accessInfo).
		On("name: orderbook_1h_summary", slots(time.Hour)).
		On("name: orderbook_4h_summary", slots(4*time.Hour)).
		On("name: orderbook_daily_detail", dailyDetail)
}

func identity(query string) (*table.Table, error) {
	t := table.New("CID", "이름", "성별", "생년월일", "고액자산가", "거주지정보",
		"직장명", "직장정보", "핸드폰번호", "이메일주소", "KYC완료일시", "MID")
	for _, mid := range memory.InList(query) {
		s := idhash.Seed(mid, "identity")
		if s%10 == 0 {
			continue
		}
		gender := "M"
		if s%2 == 1 {
			gender = "F"
		}
		highAsset := "N"
		if s%5 == 0 {
			highAsset = "Y"
		}
		birth := time.Date(1960+int(s%40), time.Month(1+s%12), 1+int(s%28), 0, 0, 0, 0, time.UTC)
		kyc := Epoch.AddDate(0, 0, -int(s%700)).Add(time.Duration(s%86400) * time.Second)
		company := companies[s%uint64(len(companies))]
		if err := t.AppendRow(
			idhash.CustomerID(mid),
			names[s%uint64(len(names))],
			gender,
			birth,
			highAsset,
			cities[(s>>8)%uint64(len(cities))],
			company,
			company+" 재직",
			fmt.Sprintf("010-%04d-%04d", (s>>16)%10000, (s>>32)%10000),
			fmt.Sprintf("user%d@example.com", s%100000),
			kyc,
			mid,
		); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func joinDates(query string) (*table.Table, error) {
	t := table.New("user_id", "join_datetime")
	for _, mid := range memory.InList(query) {
		s := idhash.Seed(mid, "join")
		if s%8 == 0 {
			continue
		}
		join := Epoch.AddDate(0, 0, -int(s%1500)).Add(time.Duration(s%86400) * time.Second)
		if err := t.AppendRow(mid, join); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func accessInfo(query string) (*table.Table, error) {
	from := Epoch
	if m := since.FindStringSubmatch(query); m != nil {
		if ts, ok := parseTime(m[1]); ok {
			from = ts
		}
	}

	t := table.New("user_id", "first_access_datetime", "last_access_datetime", "access_count", "distinct_ip_count")
	for _, mid := range memory.InList(query) {
		s := idhash.Seed(mid, "access")
		if s%6 == 0 {
			continue
		}
		first := from.Add(time.Duration(s%(72*3600)) * time.Second)
		last := first.Add(time.Duration(s%(240*3600)) * time.Second)
		if err := t.AppendRow(mid, first, last, int64(1+s%500), int64(1+s%9)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// slots aggregates synthetic trades into buckets of step within the query range.
func slots(step time.Duration) memory.Handler {
	return func(query string) (*table.Table, error) {
		start, end := window(query)
		t := table.New("user_id", "time_slot", "buy_amount_krw", "sell_amount_krw", "total_amount_krw", "trade_count")
		for _, mid := range memory.InList(query) {
			for slot := start.Truncate(step); !slot.After(end); slot = slot.Add(step) {
				s := idhash.Seed(mid, slot.Format(time.RFC3339), step.String())
				if s%3 == 0 {
					continue
				}
				buy, sell := amounts(s)
				if err := t.AppendRow(mid, slot, buy, sell, buy.Add(sell), int64(1+s%20)); err != nil {
					return nil, err
				}
			}
		}
		return t, nil
	}
}

func dailyDetail(query string) (*table.Table, error) {
	start, end := window(query)
	t := table.New("user_id", "trade_date", "market_nm", "ticker_nm", "buy_amount_krw", "sell_amount_krw", "total_amount_krw", "total_trades")
	for _, mid := range memory.InList(query) {
		for day := start.Truncate(24 * time.Hour); !day.After(end); day = day.AddDate(0, 0, 1) {
			s := idhash.Seed(mid, day.Format(time.DateOnly), "daily")
			if s%4 == 0 {
				continue
			}
			for k := uint64(0); k < 1+s%2; k++ {
				m := markets[(s>>(8*k))%uint64(len(markets))]
				buy, sell := amounts(s >> k)
				if err := t.AppendRow(mid, day, m.market, m.ticker, buy, sell, buy.Add(sell), int64(1+(s>>k)%40)); err != nil {
					return nil, err
				}
			}
		}
	}
	return t, nil
}

// window returns the BETWEEN range of query, capped at maxDays.
func window(query string) (time.Time, time.Time) {
	start, end := Epoch, Epoch.AddDate(0, 0, 3)
	if m := between.FindStringSubmatch(query); m != nil {
		if ts, ok := parseTime(m[1]); ok {
			start = ts
		}
		if ts, ok := parseTime(m[2]); ok {
			end = ts
		}
	}
	if limit := start.AddDate(0, 0, maxDays); end.After(limit) {
		end = limit
	}
	return start, end
}

func amounts(s uint64) (decimal.Decimal, decimal.Decimal) {
	buy := decimal.NewFromInt(int64(s%50) * 100000)
	sell := decimal.NewFromInt(int64((s>>12)%50) * 100000)
	return buy, sell
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.DateTime, time.DateOnly, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
