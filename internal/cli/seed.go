package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/fleetdesk/leaveguard/internal/repository"
)

// Seed is the fleet reference data loaded by `fleet seed`.
type Seed struct {
	Drivers  []domain.Driver
	Vehicles []domain.Vehicle
	Trips    []domain.TripObligation
	History  []repository.HistoryEntry
}

// seedTimeLayouts are tried in order. YAML timestamps reach koanf already
// decoded and are rendered back in time.Time's String layout.
var seedTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02T15:04",
	domain.DateLayout,
}

func parseSeedTime(field, s string) (time.Time, error) {
	for _, layout := range seedTimeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: invalid time %q", field, s)
}

func parseClock(field, s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		if s == "24:00" {
			return 24 * 60, nil
		}
		return 0, fmt.Errorf("%s: invalid time of day %q, want HH:MM", field, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func parseWeekday(field, s string) (time.Weekday, error) {
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n), nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if strings.EqualFold(s, name) || strings.EqualFold(s, name[:3]) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%s: invalid weekday %q", field, s)
}

// LoadSeed reads a YAML or JSON seed file.
func LoadSeed(path string) (*Seed, error) {
	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported seed format: %s", ext)
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading seed %s: %w", path, err)
	}
	return decodeSeed(k)
}

func decodeSeed(k *koanf.Koanf) (*Seed, error) {
	var s Seed
	for i, dk := range k.Slices("drivers") {
		field := fmt.Sprintf("drivers[%d]", i)
		d := domain.Driver{ID: dk.String("id"), Name: dk.String("name"), Active: true}
		if d.ID == "" {
			return nil, fmt.Errorf("%s: id is required", field)
		}
		if dk.Exists("active") {
			d.Active = dk.Bool("active")
		}
		var err error
		if d.LicenseExpiry, err = parseSeedTime(field+".license_expiry", dk.String("license_expiry")); err != nil {
			return nil, err
		}
		if dk.Exists("health_cert_expiry") {
			t, err := parseSeedTime(field+".health_cert_expiry", dk.String("health_cert_expiry"))
			if err != nil {
				return nil, err
			}
			d.HealthCertExpiry = &t
		}
		for j, wk := range dk.Slices("working_hours") {
			wfield := fmt.Sprintf("%s.working_hours[%d]", field, j)
			var w domain.WorkingWindow
			if w.Weekday, err = parseWeekday(wfield+".weekday", wk.String("weekday")); err != nil {
				return nil, err
			}
			if w.StartMinute, err = parseClock(wfield+".start", wk.String("start")); err != nil {
				return nil, err
			}
			if w.EndMinute, err = parseClock(wfield+".end", wk.String("end")); err != nil {
				return nil, err
			}
			if w.EndMinute <= w.StartMinute {
				return nil, fmt.Errorf("%s: end must be after start", wfield)
			}
			d.WorkingHours = append(d.WorkingHours, w)
		}
		s.Drivers = append(s.Drivers, d)
	}

	for i, vk := range k.Slices("vehicles") {
		field := fmt.Sprintf("vehicles[%d]", i)
		v := domain.Vehicle{ID: vk.String("id"), Plate: vk.String("plate"), Capacity: vk.Int("capacity"), Active: true}
		if v.ID == "" {
			return nil, fmt.Errorf("%s: id is required", field)
		}
		if v.Capacity < 0 {
			return nil, fmt.Errorf("%s: capacity must not be negative", field)
		}
		if vk.Exists("active") {
			v.Active = vk.Bool("active")
		}
		s.Vehicles = append(s.Vehicles, v)
	}

	for i, tk := range k.Slices("trips") {
		field := fmt.Sprintf("trips[%d]", i)
		o := domain.TripObligation{
			ObligationID:     tk.String("obligation_id"),
			TripID:           tk.String("trip_id"),
			Role:             tk.String("role"),
			DriverID:         tk.String("driver_id"),
			VehicleID:        tk.String("vehicle_id"),
			RouteID:          tk.String("route_id"),
			RouteName:        tk.String("route_name"),
			ActiveStudents:   tk.Int("students"),
			RequiredCapacity: tk.Int("required_capacity"),
		}
		if o.TripID == "" || o.DriverID == "" {
			return nil, fmt.Errorf("%s: trip_id and driver_id are required", field)
		}
		if o.ObligationID == "" {
			o.ObligationID = o.TripID
		}
		if o.RequiredCapacity == 0 {
			o.RequiredCapacity = o.ActiveStudents
		}
		var err error
		if o.Start, err = parseSeedTime(field+".start", tk.String("start")); err != nil {
			return nil, err
		}
		if o.End, err = parseSeedTime(field+".end", tk.String("end")); err != nil {
			return nil, err
		}
		if !o.End.After(o.Start) {
			return nil, fmt.Errorf("%s: end must be after start", field)
		}
		s.Trips = append(s.Trips, o)
	}

	for i, hk := range k.Slices("history") {
		field := fmt.Sprintf("history[%d]", i)
		h := repository.HistoryEntry{
			ID:       hk.String("id"),
			DriverID: hk.String("driver_id"),
			RouteID:  hk.String("route_id"),
			OnTime:   true,
		}
		if hk.Exists("on_time") {
			h.OnTime = hk.Bool("on_time")
		}
		var err error
		if h.CompletedAt, err = parseSeedTime(field+".completed_at", hk.String("completed_at")); err != nil {
			return nil, err
		}
		s.History = append(s.History, h)
	}
	return &s, nil
}

// Apply upserts the seed into the fleet tables.
func (s *Seed) Apply(ctx context.Context, fleet *repository.SQLiteFleet) error {
	for _, d := range s.Drivers {
		if err := fleet.UpsertDriver(ctx, d); err != nil {
			return err
		}
	}
	for _, v := range s.Vehicles {
		if err := fleet.UpsertVehicle(ctx, v); err != nil {
			return err
		}
	}
	for _, o := range s.Trips {
		if err := fleet.UpsertObligation(ctx, o); err != nil {
			return err
		}
	}
	for _, h := range s.History {
		if err := fleet.AddHistory(ctx, h); err != nil {
			return err
		}
	}
	return nil
}
