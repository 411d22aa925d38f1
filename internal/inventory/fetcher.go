// Package inventory builds the per-period seat snapshots a booking pass
// consumes. Fetches run one task per active period on a bounded group and
// join before returning; downstream never sees partial results.
package inventory

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Toskysun/sdu-seat/internal/domain/booking"
)

// Fetcher resolves the configured area once per date and produces a fresh
// Inventory per call. Safe to call repeatedly; later results replace
// earlier ones wholesale.
type Fetcher struct {
	catalog booking.Catalog
	log     *zap.Logger

	areaSpec    string              // "building-area", e.g. "中心馆-图东区(3-4)"
	seatsByRoom map[string][]string // room name -> preferred seat names, configured order
	window      booking.Window
	taskTimeout time.Duration
	parallelism int

	mu        sync.Mutex
	rooms     map[string]booking.Area // resolved rooms under the configured area
	roomsDate string                  // date the cached rooms were resolved for
}

type Option func(*Fetcher)

// WithTaskTimeout bounds each per-period fetch task.
func WithTaskTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.taskTimeout = d }
}

// WithParallelism overrides the worker limit (tests).
func WithParallelism(n int) Option {
	return func(f *Fetcher) { f.parallelism = n }
}

func New(catalog booking.Catalog, areaSpec string, seatsByRoom map[string][]string, window booking.Window, log *zap.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		catalog:     catalog,
		log:         log,
		areaSpec:    areaSpec,
		seatsByRoom: seatsByRoom,
		window:      window,
		taskTimeout: 15 * time.Second,
		parallelism: 2 * runtime.GOMAXPROCS(0),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// resolveRooms walks building -> area -> rooms and caches the room map.
// The cache is keyed by date: rooms carry that date's periods and their
// segment ids, so the daemon's next daily run must walk the tree again.
func (f *Fetcher) resolveRooms(ctx context.Context, date string) (map[string]booking.Area, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms != nil && f.roomsDate == date {
		return f.rooms, nil
	}

	building, areaName, ok := strings.Cut(f.areaSpec, "-")
	if !ok {
		return nil, &booking.CatalogError{Area: f.areaSpec, Err: fmt.Errorf(`area must be "building-area"`)}
	}

	libs, err := f.catalog.Libraries(ctx, date)
	if err != nil {
		return nil, err
	}
	lib, ok := libs[building]
	if !ok {
		return nil, &booking.CatalogError{Area: building, Err: fmt.Errorf("building not in catalog (have: %s)", joinKeys(libs))}
	}

	areas, err := f.catalog.SubAreas(ctx, lib, date)
	if err != nil {
		return nil, err
	}
	area, ok := areas[areaName]
	if !ok {
		return nil, &booking.CatalogError{Area: f.areaSpec, Err: fmt.Errorf("area not under %s (have: %s)", building, joinKeys(areas))}
	}

	rooms, err := f.catalog.SubAreas(ctx, area, date)
	if err != nil {
		return nil, err
	}
	f.rooms = rooms
	f.roomsDate = date
	f.log.Info("area resolved",
		zap.String("area", f.areaSpec),
		zap.String("date", date),
		zap.Int("rooms", len(rooms)))
	return rooms, nil
}

// activePeriods picks the day's periods overlapping the booking window.
// The provider attaches periods per room; rooms of one area share them, so
// the first room (by name, for determinism) that carries any wins.
func (f *Fetcher) activePeriods(rooms map[string]booking.Area) ([]booking.Period, error) {
	var periods []booking.Period
	for _, name := range sortedKeys(rooms) {
		if ps := rooms[name].Periods; len(ps) > 0 {
			periods = ps
			break
		}
	}
	if len(periods) == 0 {
		return nil, &booking.CatalogError{Area: f.areaSpec, Err: fmt.Errorf("no bookable periods listed")}
	}

	var active []booking.Period
	for _, p := range periods {
		if f.window.Overlaps(p) {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return nil, &booking.CatalogError{Area: f.areaSpec, Err: fmt.Errorf("no period overlaps window %s", f.window)}
	}
	return active, nil
}

// Fetch returns a complete snapshot per active period, or an error if any
// period cannot be fetched. Periods fetch concurrently; the call blocks
// until all tasks finish.
func (f *Fetcher) Fetch(ctx context.Context, date string) (booking.Inventory, error) {
	rooms, err := f.resolveRooms(ctx, date)
	if err != nil {
		return nil, err
	}
	active, err := f.activePeriods(rooms)
	if err != nil {
		return nil, err
	}

	snaps := make([]booking.AreaSnapshot, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.parallelism)
	for i, p := range active {
		i, p := i, p
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(gctx, f.taskTimeout)
			defer cancel()
			snap, err := f.fetchPeriod(tctx, rooms, p, date)
			if err != nil {
				return err
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inv := make(booking.Inventory, len(snaps))
	for _, s := range snaps {
		inv[s.Period.ID] = s
	}
	return inv, nil
}

// fetchPeriod collects all seats of the configured rooms for one period
// and filters the preferred ones in configured order. Unresolvable seat
// or room names are logged, not fatal; an empty overall seat list is.
func (f *Fetcher) fetchPeriod(ctx context.Context, rooms map[string]booking.Area, period booking.Period, date string) (booking.AreaSnapshot, error) {
	snap := booking.AreaSnapshot{Period: period}

	for _, roomName := range sortedKeys(f.seatsByRoom) {
		room, ok := rooms[roomName]
		if !ok {
			f.log.Warn("configured room not in catalog",
				zap.String("room", roomName),
				zap.String("period", period.Label()))
			continue
		}
		seats, err := f.catalog.Seats(ctx, room, period, date)
		if err != nil {
			return booking.AreaSnapshot{}, err
		}
		for _, name := range sortedKeys(seats) {
			snap.All = append(snap.All, seats[name])
		}
		for _, seatName := range f.seatsByRoom[roomName] {
			seat, ok := seats[seatName]
			if !ok {
				f.log.Warn("configured seat not in catalog",
					zap.String("room", roomName),
					zap.String("seat", seatName),
					zap.String("period", period.Label()))
				continue
			}
			snap.Preferred = append(snap.Preferred, seat)
		}
	}

	if len(snap.All) == 0 {
		return booking.AreaSnapshot{}, &booking.CatalogError{
			Area:   f.areaSpec,
			Period: period.Label(),
			Err:    fmt.Errorf("no seats found in any configured room"),
		}
	}
	f.log.Info("period snapshot ready",
		zap.String("period", period.Label()),
		zap.Int("preferred", len(snap.Preferred)),
		zap.Int("all", len(snap.All)))
	return snap, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinKeys[V any](m map[string]V) string {
	return strings.Join(sortedKeys(m), ", ")
}
