// Package instrument implements InstrumentResolver (C7): a pure, read-only
// lookup from (underlying, expiry, strike, right) to broker security id and
// lot size. Source data is a CSV instrument master, loaded the way the
// teacher's backtest.go loads candle CSVs (stdlib encoding/csv, tolerant of
// header casing) — this component is named an external collaborator in the
// spec, so a minimal, dependency-free loader is all that's warranted.
package instrument

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

// Contract key identifies one resolvable instrument.
type contractKey struct {
	Symbol string
	Expiry string // YYYY-MM-DD
	Strike int64  // strike*100 (paise) as an integer, for exact map keys
	Right  types.Right
}

// Row is one CSV line of the instrument master.
type Row struct {
	Symbol     string
	Expiry     time.Time
	Strike     float64
	Right      types.Right
	SecurityID string
	Segment    string
	LotSize    int
}

// Resolver answers (underlying, expiry, strike, right) -> security id, and
// (symbol) -> available expiries. Safe for concurrent reads: built once at
// load time and never mutated afterward.
type Resolver struct {
	byContract map[contractKey]Row
	expiries   map[string][]time.Time
	lotSizes   map[string]int    // by security id
	segments   map[string]string // by security id
}

// NewResolver builds a Resolver from already-loaded rows.
func NewResolver(rows []Row) *Resolver {
	r := &Resolver{
		byContract: make(map[contractKey]Row, len(rows)),
		expiries:   make(map[string][]time.Time),
		lotSizes:   make(map[string]int, len(rows)),
		segments:   make(map[string]string, len(rows)),
	}
	seen := make(map[string]map[time.Time]bool)
	for _, row := range rows {
		key := contractKey{
			Symbol: row.Symbol,
			Expiry: row.Expiry.Format("2006-01-02"),
			Strike: int64(row.Strike * 100),
			Right:  row.Right,
		}
		r.byContract[key] = row
		r.lotSizes[row.SecurityID] = row.LotSize
		r.segments[row.SecurityID] = row.Segment

		if seen[row.Symbol] == nil {
			seen[row.Symbol] = make(map[time.Time]bool)
		}
		if !seen[row.Symbol][row.Expiry] {
			seen[row.Symbol][row.Expiry] = true
			r.expiries[row.Symbol] = append(r.expiries[row.Symbol], row.Expiry)
		}
	}
	for sym := range r.expiries {
		sort.Slice(r.expiries[sym], func(i, j int) bool {
			return r.expiries[sym][i].Before(r.expiries[sym][j])
		})
	}
	return r
}

// LoadCSV reads an instrument master with headers:
// symbol,expiry,strike,right,security_id,segment,lot_size
func LoadCSV(path string) (*Resolver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var headers []string
	var rows []Row
	rowIdx := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rowIdx == 0 {
			headers = rec
			rowIdx++
			continue
		}
		fields := map[string]string{}
		for i, h := range headers {
			if i < len(rec) {
				fields[strings.ToLower(strings.TrimSpace(h))] = strings.TrimSpace(rec[i])
			}
		}
		expiry, err := time.Parse("2006-01-02", fields["expiry"])
		if err != nil {
			rowIdx++
			continue
		}
		strike, _ := strconv.ParseFloat(fields["strike"], 64)
		lotSize, _ := strconv.Atoi(fields["lot_size"])
		rows = append(rows, Row{
			Symbol:     fields["symbol"],
			Expiry:     expiry,
			Strike:     strike,
			Right:      types.Right(strings.ToUpper(fields["right"])),
			SecurityID: fields["security_id"],
			Segment:    fields["segment"],
			LotSize:    lotSize,
		})
		rowIdx++
	}
	return NewResolver(rows), nil
}

// Expiries returns the sorted list of known expiries for symbol.
func (r *Resolver) Expiries(symbol string) []time.Time {
	return append([]time.Time(nil), r.expiries[symbol]...)
}

// SecurityID resolves a contract to its broker security id. Returns ("",
// false) if the resolver has no row for this (symbol, expiry, strike, right).
func (r *Resolver) SecurityID(symbol string, expiry time.Time, strike float64, right types.Right) (string, bool) {
	key := contractKey{Symbol: symbol, Expiry: expiry.Format("2006-01-02"), Strike: int64(strike * 100), Right: right}
	row, ok := r.byContract[key]
	if !ok {
		return "", false
	}
	return row.SecurityID, true
}

// LotSize returns the lot size for a resolved security id.
func (r *Resolver) LotSize(securityID string) (int, bool) {
	v, ok := r.lotSizes[securityID]
	return v, ok
}

// SegmentOf returns the trading segment for a resolved security id.
func (r *Resolver) SegmentOf(securityID string) (string, bool) {
	v, ok := r.segments[securityID]
	return v, ok
}
