// Package schedule projects recurring watering dates for plants and classifies
// their watering status. All results are recomputed on every call.
package schedule

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"plantkeeper/pkg/domain"
)

const day = 24 * time.Hour

// Status classifies a plant's watering state relative to a reference date.
type Status string

// Watering statuses.
const (
	StatusMissed    Status = "missed"
	StatusCompleted Status = "completed"
	StatusUpcoming  Status = "upcoming"
)

// Node is one projected watering occurrence.
type Node struct {
	Date    time.Time    `json:"date"`
	PlantID string       `json:"plant_id"`
	Plant   domain.Plant `json:"-"`
}

// InvalidScheduleError is returned for plants whose watering interval cannot
// produce a schedule.
type InvalidScheduleError struct {
	PlantID  string
	Interval time.Duration
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("plant %s has invalid watering interval %s", e.PlantID, e.Interval)
}

// Calculator computes schedules. The zero value is not usable; construct with New.
type Calculator struct {
	now func() time.Time
	loc *time.Location
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLocation sets the time zone used for day and month boundaries.
func WithLocation(loc *time.Location) Option {
	return func(c *Calculator) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// New constructs a Calculator. Defaults to the wall clock in UTC.
func New(opts ...Option) *Calculator {
	c := &Calculator{now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Today is the start of the current day on the calculator clock.
func (c *Calculator) Today() time.Time { return c.StartOfDay(c.now()) }

// StartOfDay truncates t to midnight in the calculator location.
func (c *Calculator) StartOfDay(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// MonthBounds returns the first instant of t's month and of the following month.
func (c *Calculator) MonthBounds(t time.Time) (time.Time, time.Time) {
	t = t.In(c.loc)
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, c.loc)
	return start, start.AddDate(0, 1, 0)
}

// WateringSchedule returns every projected watering of plant that falls within
// forMonth, in increasing order.
func (c *Calculator) WateringSchedule(plant domain.Plant, forMonth time.Time) ([]Node, error) {
	start, end := c.MonthBounds(forMonth)
	return c.WateringScheduleRange(plant, start, end)
}

// WateringScheduleRange projects waterings within [from, to). The first date is
// the earliest interval multiple from the last watering at or after from,
// truncated to the start of its day; a date that truncation moves before from
// is skipped.
func (c *Calculator) WateringScheduleRange(plant domain.Plant, from, to time.Time) ([]Node, error) {
	interval := plant.WateringInterval
	if interval <= 0 {
		return nil, &InvalidScheduleError{PlantID: plant.ID, Interval: interval}
	}
	differenceInDays := from.Sub(plant.DateLastWatered).Hours() / 24
	intervalInDays := interval.Hours() / 24
	offsetInDays := math.Ceil(differenceInDays/intervalInDays) * intervalInDays

	date := c.StartOfDay(addDays(plant.DateLastWatered, offsetInDays))
	var nodes []Node
	for date.Before(to) {
		if !date.Before(from) {
			nodes = append(nodes, Node{Date: date, PlantID: plant.ID, Plant: plant})
		}
		date = addInterval(date, interval)
	}
	return nodes, nil
}

// NextWateringDate returns the n-th projected watering after the last one.
func (c *Calculator) NextWateringDate(plant domain.Plant, n int) time.Time {
	return plant.DateLastWatered.Add(time.Duration(n) * plant.WateringInterval)
}

// WateringStatus classifies plant relative to d. Checks run in order and the
// first match wins: a missed watering outranks a completed one.
func (c *Calculator) WateringStatus(plant domain.Plant, d time.Time) Status {
	if c.NextWateringDate(plant, 1).Before(c.StartOfDay(c.now())) {
		return StatusMissed
	}
	if plant.DateLastWatered.After(c.StartOfDay(d)) {
		return StatusCompleted
	}
	return StatusUpcoming
}

// MonthSchedule merges the schedules of several plants for forMonth, sorted by
// date. Plants with an invalid interval are left out and reported in the
// joined error; the remaining nodes are still returned.
func (c *Calculator) MonthSchedule(plants []domain.Plant, forMonth time.Time) ([]Node, error) {
	var (
		all  []Node
		errs []error
	)
	for _, p := range plants {
		nodes, err := c.WateringSchedule(p, forMonth)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		all = append(all, nodes...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Date.Equal(all[j].Date) {
			return all[i].PlantID < all[j].PlantID
		}
		return all[i].Date.Before(all[j].Date)
	})
	return all, errors.Join(errs...)
}

// Upcoming returns the next n projected watering dates.
func (c *Calculator) Upcoming(plant domain.Plant, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, c.NextWateringDate(plant, i))
	}
	return out
}

func addDays(t time.Time, days float64) time.Time {
	if whole := math.Trunc(days); whole == days {
		return t.AddDate(0, 0, int(whole))
	}
	return t.Add(time.Duration(days * float64(day)))
}

func addInterval(t time.Time, interval time.Duration) time.Time {
	if interval%day == 0 {
		return t.AddDate(0, 0, int(interval/day))
	}
	return t.Add(interval)
}
