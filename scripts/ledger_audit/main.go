// Command ledger_audit replays the live week's conduct events for every
// student and compares the result against the cached score column. Run it
// after incidents or migrations to detect drift between the event log and
// the projection. Exits non-zero when any student drifts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/homeroom-api/internal/models"
	"github.com/noah-isme/homeroom-api/internal/repository"
	"github.com/noah-isme/homeroom-api/pkg/config"
	"github.com/noah-isme/homeroom-api/pkg/database"
)

type drift struct {
	StudentCode string
	Name        string
	Cached      float64
	Replayed    float64
}

func main() {
	var (
		tolerance float64
		timeout   time.Duration
	)
	flag.Float64Var(&tolerance, "tolerance", 0.001, "Maximum allowed difference before a score counts as drifted")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall run timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	drifts, checked, err := audit(ctx, db, tolerance)
	if err != nil {
		log.Fatalf("audit failed: %v", err)
	}

	fmt.Println("Ledger Audit Report")
	fmt.Println("===================")
	fmt.Printf("Students checked: %d\n", checked)
	if len(drifts) == 0 {
		fmt.Println("No drift detected.")
		return
	}
	for _, d := range drifts {
		fmt.Printf("[DRIFT] %s (%s): cached=%.1f replayed=%.1f delta=%.1f\n",
			d.StudentCode, d.Name, d.Cached, d.Replayed, d.Cached-d.Replayed)
	}
	fmt.Printf("Drifted students: %d\n", len(drifts))
	os.Exit(1)
}

func audit(ctx context.Context, db *sqlx.DB, tolerance float64) ([]drift, int, error) {
	students := repository.NewStudentRepository(db)
	conduct := repository.NewConductRepository(db)
	configRepo := repository.NewConfigRepository(db)

	week := 1
	if raw, ok, err := configRepo.Get(ctx, models.ConfigCurrentWeek); err != nil {
		return nil, 0, fmt.Errorf("read current week: %w", err)
	} else if ok {
		if _, err := fmt.Sscanf(raw, "%d", &week); err != nil {
			return nil, 0, fmt.Errorf("parse current week %q: %w", raw, err)
		}
	}

	all, err := students.ListAll(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var drifts []drift
	for _, s := range all {
		replayed, err := replayWeek(ctx, conduct, s.ID, week)
		if err != nil {
			return nil, 0, fmt.Errorf("replay student %s: %w", s.StudentCode, err)
		}
		if math.Abs(s.Score()-replayed) > tolerance {
			drifts = append(drifts, drift{
				StudentCode: s.StudentCode,
				Name:        s.Name,
				Cached:      s.Score(),
				Replayed:    replayed,
			})
		}
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].StudentCode < drifts[j].StudentCode })
	return drifts, len(all), nil
}

// replayWeek applies the week's events in commit order with the same
// clamping the ledger service uses: bonuses cap at the baseline, violations
// may push the score negative.
func replayWeek(ctx context.Context, conduct *repository.ConductRepository, studentID string, week int) (float64, error) {
	events, err := conduct.List(ctx, models.ConductEventFilter{StudentID: studentID, WeekNumber: week})
	if err != nil {
		return 0, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].DateCommitted.Before(events[j].DateCommitted)
	})

	score := float64(models.BaselineScore)
	for _, e := range events {
		score += e.Kind.Sign() * float64(e.Points)
		if e.Kind == models.EventBonus && score > models.BaselineScore {
			score = models.BaselineScore
		}
	}
	return score, nil
}
