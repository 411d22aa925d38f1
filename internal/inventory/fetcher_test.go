package inventory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Toskysun/sdu-seat/internal/domain/booking"
)

// fakeCatalog serves a small fixed area tree:
// 中心馆 -> 图东区 -> rooms 201, 202 with two periods.
type fakeCatalog struct {
	periods       []booking.Period
	periodsByDate map[string][]booking.Period // overrides periods when set
	seats         map[string]map[string]booking.Seat // room -> seat name -> seat
	seatsErr      error
	libCalls      atomic.Int32
	seatCalls     atomic.Int32
	emptyPeriods  bool
}

func (f *fakeCatalog) Libraries(context.Context, string) (map[string]booking.Area, error) {
	f.libCalls.Add(1)
	return map[string]booking.Area{
		"中心馆": {ID: 1, Name: "中心馆"},
		"蒋震馆": {ID: 2, Name: "蒋震馆"},
	}, nil
}

func (f *fakeCatalog) SubAreas(_ context.Context, parent booking.Area, date string) (map[string]booking.Area, error) {
	switch parent.ID {
	case 1:
		return map[string]booking.Area{
			"图东区": {ID: 10, Name: "图东区", ParentID: 1},
		}, nil
	case 10:
		periods := f.periods
		if f.periodsByDate != nil {
			periods = f.periodsByDate[date]
		}
		if f.emptyPeriods {
			periods = nil
		}
		return map[string]booking.Area{
			"201": {ID: 101, Name: "201", ParentID: 10, Periods: periods},
			"202": {ID: 102, Name: "202", ParentID: 10, Periods: periods},
		}, nil
	default:
		return map[string]booking.Area{}, nil
	}
}

func (f *fakeCatalog) Seats(_ context.Context, area booking.Area, _ booking.Period, _ string) (map[string]booking.Seat, error) {
	f.seatCalls.Add(1)
	if f.seatsErr != nil {
		return nil, f.seatsErr
	}
	out := make(map[string]booking.Seat)
	for name, s := range f.seats[area.Name] {
		out[name] = s
	}
	return out, nil
}

func defaultPeriods() []booking.Period {
	return []booking.Period{
		{ID: 100, StartTime: "08:00", EndTime: "12:00", Date: "2026-09-02"},
		{ID: 200, StartTime: "14:00", EndTime: "18:00", Date: "2026-09-02"},
	}
}

func defaultSeats() map[string]map[string]booking.Seat {
	return map[string]map[string]booking.Seat{
		"201": {
			"001": {ID: 1, Name: "001", Status: booking.SeatBookable},
			"002": {ID: 2, Name: "002", Status: booking.SeatReserved},
		},
		"202": {
			"050": {ID: 50, Name: "050", Status: booking.SeatBookable},
		},
	}
}

func newTestFetcher(cat *fakeCatalog, seatsByRoom map[string][]string, window booking.Window) *Fetcher {
	return New(cat, "中心馆-图东区", seatsByRoom, window, zap.NewNop(),
		WithParallelism(1), WithTaskTimeout(5*time.Second))
}

func TestFetchBuildsSnapshotPerPeriod(t *testing.T) {
	cat := &fakeCatalog{periods: defaultPeriods(), seats: defaultSeats()}
	f := newTestFetcher(cat, map[string][]string{"201": {"002", "001"}}, booking.Window{Start: "08:00", End: "22:30"})

	inv, err := f.Fetch(context.Background(), "2026-09-02")
	require.NoError(t, err)
	require.Len(t, inv, 2)

	snap := inv[100]
	assert.Equal(t, 100, snap.Period.ID)
	require.Len(t, snap.Preferred, 2)
	assert.Equal(t, "002", snap.Preferred[0].Name, "preferred seats keep configured order")
	assert.Equal(t, "001", snap.Preferred[1].Name)
	assert.Len(t, snap.All, 2, "only configured rooms contribute")
}

func TestFetchFiltersPeriodsByWindow(t *testing.T) {
	cat := &fakeCatalog{periods: defaultPeriods(), seats: defaultSeats()}
	f := newTestFetcher(cat, map[string][]string{"201": {"001"}}, booking.Window{Start: "08:00", End: "12:00"})

	inv, err := f.Fetch(context.Background(), "2026-09-02")
	require.NoError(t, err)
	require.Len(t, inv, 1)
	_, ok := inv[100]
	assert.True(t, ok, "only the morning period overlaps")
}

func TestFetchNoOverlappingPeriodFails(t *testing.T) {
	cat := &fakeCatalog{periods: defaultPeriods(), seats: defaultSeats()}
	f := newTestFetcher(cat, map[string][]string{"201": {"001"}}, booking.Window{Start: "19:00", End: "20:00"})

	_, err := f.Fetch(context.Background(), "2026-09-02")
	var cerr *booking.CatalogError
	require.ErrorAs(t, err, &cerr)
}

func TestFetchSeatErrorFailsWholeFetch(t *testing.T) {
	cat := &fakeCatalog{periods: defaultPeriods(), seats: defaultSeats(), seatsErr: errors.New("boom")}
	f := newTestFetcher(cat, map[string][]string{"201": {"001"}}, booking.Window{Start: "08:00", End: "22:30"})

	_, err := f.Fetch(context.Background(), "2026-09-02")
	require.Error(t, err)
}

func TestFetchEmptySeatListFailsWholeFetch(t *testing.T) {
	cat := &fakeCatalog{periods: defaultPeriods(), seats: map[string]map[string]booking.Seat{}}
	f := newTestFetcher(cat, map[string][]string{"201": {"001"}}, booking.Window{Start: "08:00", End: "22:30"})

	_, err := f.Fetch(context.Background(), "2026-09-02")
	var cerr *booking.CatalogError
	require.ErrorAs(t, err, &cerr)
}

func TestFetchUnknownRoomAndSeatAreNotFatal(t *testing.T) {
	cat := &fakeCatalog{periods: defaultPeriods(), seats: defaultSeats()}
	f := newTestFetcher(cat, map[string][]string{
		"201": {"001", "999"},
		"999": {"001"},
	}, booking.Window{Start: "08:00", End: "22:30"})

	inv, err := f.Fetch(context.Background(), "2026-09-02")
	require.NoError(t, err)
	snap := inv[100]
	require.Len(t, snap.Preferred, 1)
	assert.Equal(t, "001", snap.Preferred[0].Name)
}

func TestFetchResolvesAreaOnce(t *testing.T) {
	cat := &fakeCatalog{periods: defaultPeriods(), seats: defaultSeats()}
	f := newTestFetcher(cat, map[string][]string{"201": {"001"}}, booking.Window{Start: "08:00", End: "22:30"})

	first, err := f.Fetch(context.Background(), "2026-09-02")
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), "2026-09-02")
	require.NoError(t, err)
	assert.Equal(t, first, second, "unchanged provider yields identical snapshots")
	assert.Equal(t, int32(1), cat.libCalls.Load(), "area tree walked once, seats every fetch")
	assert.Equal(t, int32(4), cat.seatCalls.Load())
}

func TestFetchRefreshesPeriodsForNewDate(t *testing.T) {
	cat := &fakeCatalog{
		periodsByDate: map[string][]booking.Period{
			"2026-09-02": {{ID: 100, StartTime: "08:00", EndTime: "12:00", Date: "2026-09-02"}},
			"2026-09-03": {{ID: 300, StartTime: "08:00", EndTime: "12:00", Date: "2026-09-03"}},
		},
		seats: defaultSeats(),
	}
	f := newTestFetcher(cat, map[string][]string{"201": {"001"}}, booking.Window{Start: "08:00", End: "22:30"})

	dayOne, err := f.Fetch(context.Background(), "2026-09-02")
	require.NoError(t, err)
	require.Contains(t, dayOne, 100)

	dayTwo, err := f.Fetch(context.Background(), "2026-09-03")
	require.NoError(t, err)
	require.Contains(t, dayTwo, 300, "next day must carry that day's segment ids")
	assert.NotContains(t, dayTwo, 100)
	assert.Equal(t, int32(2), cat.libCalls.Load(), "area tree walked once per date")
}

func TestFetchUnknownBuilding(t *testing.T) {
	cat := &fakeCatalog{periods: defaultPeriods(), seats: defaultSeats()}
	f := New(cat, "不存在-图东区", map[string][]string{"201": {"001"}}, booking.Window{Start: "08:00", End: "22:30"}, zap.NewNop())

	_, err := f.Fetch(context.Background(), "2026-09-02")
	var cerr *booking.CatalogError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, err.Error(), "中心馆", "error names the available buildings")
}

func TestFetchBadAreaSpec(t *testing.T) {
	cat := &fakeCatalog{periods: defaultPeriods(), seats: defaultSeats()}
	f := New(cat, "中心馆", nil, booking.Window{Start: "08:00", End: "22:30"}, zap.NewNop())

	_, err := f.Fetch(context.Background(), "2026-09-02")
	require.Error(t, err)
}

func TestFetchNoPeriodsListed(t *testing.T) {
	cat := &fakeCatalog{periods: defaultPeriods(), seats: defaultSeats(), emptyPeriods: true}
	f := newTestFetcher(cat, map[string][]string{"201": {"001"}}, booking.Window{Start: "08:00", End: "22:30"})

	_, err := f.Fetch(context.Background(), "2026-09-02")
	var cerr *booking.CatalogError
	require.ErrorAs(t, err, &cerr)
}
