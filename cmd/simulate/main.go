package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caresync/booking-engine/internal/config"
	"github.com/caresync/booking-engine/internal/db"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	SlotRatio     float64
	SerialRatio   float64
	CancelRatio   float64
	ReadRatio     float64
	PatientLimit  int
	ProviderLimit int
	PostgresDSN   string
}

type scheduleTarget struct {
	ProviderID uuid.UUID
	VenueID    uuid.UUID
	DayOfWeek  int
}

type bookedAppt struct {
	ID        uuid.UUID
	PatientID uuid.UUID
}

type DataPool struct {
	Patients        []uuid.UUID
	SerialProviders []uuid.UUID
	Schedules       []scheduleTarget

	mu           sync.RWMutex
	appointments []bookedAppt
}

func (dp *DataPool) AddAppointment(a bookedAppt) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, a)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (bookedAppt, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return bookedAppt{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[len(latencies)*50/100]
	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]
	return avg, min, max, p50, p95
}

type Metrics struct {
	SlotBooking   OperationMetrics
	SerialBooking OperationMetrics
	Cancel        OperationMetrics
	ReadByID      OperationMetrics
	Availability  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d slot=%.2f serial=%.2f cancel=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.SlotRatio, cfg.SerialRatio, cfg.CancelRatio, cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d patients, %d serial providers, %d schedules",
		len(dataPool.Patients), len(dataPool.SerialProviders), len(dataPool.Schedules))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		SlotRatio:     getFloat("SIM_SLOT_RATIO", 0.35),
		SerialRatio:   getFloat("SIM_SERIAL_RATIO", 0.35),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.2),
		PatientLimit:  getInt("SIM_PATIENT_LIMIT", 4000),
		ProviderLimit: getInt("SIM_PROVIDER_LIMIT", 200),
		PostgresDSN:   baseCfg.PostgresDSN,
	}

	total := cfg.SlotRatio + cfg.SerialRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.SlotRatio /= total
		cfg.SerialRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}

	rows, err = pool.Query(ctx, `
		SELECT sp.provider_id
		FROM serial_policies sp
		JOIN providers p ON p.id = sp.provider_id
		WHERE sp.is_active AND p.status = 'approved'
		LIMIT $1
	`, cfg.ProviderLimit)
	if err != nil {
		return nil, fmt.Errorf("load serial providers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.SerialProviders = append(dataPool.SerialProviders, id)
	}

	rows, err = pool.Query(ctx, `
		SELECT rs.provider_id, rs.venue_id, rs.day_of_week
		FROM recurring_schedules rs
		JOIN providers p ON p.id = rs.provider_id
		WHERE rs.is_active AND p.status = 'approved'
		LIMIT $1
	`, cfg.ProviderLimit)
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st scheduleTarget
		if err := rows.Scan(&st.ProviderID, &st.VenueID, &st.DayOfWeek); err != nil {
			return nil, err
		}
		dataPool.Schedules = append(dataPool.Schedules, st)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.SerialProviders) == 0 && len(dataPool.Schedules) == 0 {
		return nil, fmt.Errorf("no bookable providers loaded")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.SlotRatio:
				s.doSlotBooking(ctx, rng)
			case r < s.config.SlotRatio+s.config.SerialRatio:
				s.doSerialBooking(ctx, rng)
			case r < s.config.SlotRatio+s.config.SerialRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				if rng.Intn(2) == 0 {
					s.doReadByID(ctx, rng)
				} else {
					s.doAvailability(ctx, rng)
				}
			}
		}
	}
}

// nextDateForWeekday finds the next calendar date falling on the given
// weekday, starting from tomorrow.
func nextDateForWeekday(day int) string {
	d := time.Now().AddDate(0, 0, 1)
	for int(d.Weekday()) != day {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format("2006-01-02")
}

// Seeded schedules cover 09:00-13:00 and 17:00-21:00 in 15 minute slots.
func randomSlotStart(rng *rand.Rand) string {
	var minute int
	if rng.Intn(2) == 0 {
		minute = 9*60 + 15*rng.Intn(16)
	} else {
		minute = 17*60 + 15*rng.Intn(16)
	}
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

func (s *Simulator) doSlotBooking(ctx context.Context, rng *rand.Rand) {
	if len(s.pool.Schedules) == 0 || len(s.pool.Patients) == 0 {
		return
	}

	target := s.pool.Schedules[rng.Intn(len(s.pool.Schedules))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	kind := "new_patient"
	if rng.Intn(3) == 0 {
		kind = "follow_up"
	}

	reqBody := map[string]any{
		"patient_id":  patientID.String(),
		"provider_id": target.ProviderID.String(),
		"venue_id":    target.VenueID.String(),
		"date":        nextDateForWeekday(target.DayOfWeek),
		"start":       randomSlotStart(rng),
		"kind":        kind,
	}

	s.postBooking(ctx, "/appointments", reqBody, patientID, &s.metrics.SlotBooking)
}

func (s *Simulator) doSerialBooking(ctx context.Context, rng *rand.Rand) {
	if len(s.pool.SerialProviders) == 0 || len(s.pool.Patients) == 0 {
		return
	}

	providerID := s.pool.SerialProviders[rng.Intn(len(s.pool.SerialProviders))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	// Seeded policies run 20 sessions per day, so online serials are 2..20.
	serial := 2 * (1 + rng.Intn(10))

	reqBody := map[string]any{
		"patient_id":    patientID.String(),
		"provider_id":   providerID.String(),
		"date":          time.Now().AddDate(0, 0, 1+rng.Intn(5)).Format("2006-01-02"),
		"serial_number": serial,
	}

	s.postBooking(ctx, "/appointments/serial", reqBody, patientID, &s.metrics.SerialBooking)
}

func (s *Simulator) postBooking(ctx context.Context, path string, reqBody map[string]any, patientID uuid.UUID, om *OperationMetrics) {
	start := time.Now()

	body, _ := json.Marshal(reqBody)
	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Caller-Ref", patientID.String())
	req.Header.Set("X-Caller-Role", "patient")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var apptResp struct {
				ID uuid.UUID `json:"id"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if json.Unmarshal(bodyBytes, &apptResp) == nil && apptResp.ID != uuid.Nil {
				s.pool.AddAppointment(bookedAppt{ID: apptResp.ID, PatientID: patientID})
			}
		case http.StatusConflict:
			conflict = true
		}
	}

	om.Record(latency, success, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()

	body, _ := json.Marshal(map[string]string{"reason": "simulated cancellation"})
	req, _ := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/appointments/%s/cancel", s.config.APIBaseURL, appt.ID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Caller-Ref", appt.PatientID.String())
	req.Header.Set("X-Caller-Role", "patient")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			success = true
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.Cancel.Record(latency, success, conflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/appointments/%s", s.config.APIBaseURL, appt.ID), nil)
	req.Header.Set("X-Caller-Ref", appt.PatientID.String())
	req.Header.Set("X-Caller-Role", "patient")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.ReadByID.Record(latency, success, false)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	var providerID uuid.UUID
	date := time.Now().AddDate(0, 0, 1+rng.Intn(5)).Format("2006-01-02")

	if len(s.pool.Schedules) > 0 && rng.Intn(2) == 0 {
		target := s.pool.Schedules[rng.Intn(len(s.pool.Schedules))]
		providerID = target.ProviderID
		date = nextDateForWeekday(target.DayOfWeek)
	} else if len(s.pool.SerialProviders) > 0 {
		providerID = s.pool.SerialProviders[rng.Intn(len(s.pool.SerialProviders))]
	} else {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/providers/%s/availability?date=%s", s.config.APIBaseURL, providerID, date), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Availability.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n================================================================")
	fmt.Println("SIMULATION REPORT")
	fmt.Println("================================================================")
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n\n", s.config.Workers)

	printOperationReport("Slot booking", &s.metrics.SlotBooking)
	printOperationReport("Serial booking", &s.metrics.SerialBooking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Availability", &s.metrics.Availability)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errs := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, float64(errs)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
