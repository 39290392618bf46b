package optimizer

import (
	"reflect"
	"testing"

	"github.com/iwvelando/budget-optimizer/internal/forecast"
	"go.uber.org/zap"
)

func TestRunnerRun(t *testing.T) {
	runner, err := NewRunner(zap.NewNop(), DefaultBoundsPolicy())
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}

	names := []string{"Naver", "Meta", "Google", "Karrot"}
	out := runner.Run(forecast.ChannelForecast{300, 200, 250, 150}, 500000, names)
	if !out.Result.Succeeded() {
		t.Fatalf("expected success, got %s", out.Result.Reason)
	}
	if out.Summary.Floor != 30000 || out.Summary.Cap != 300000 {
		t.Fatalf("unexpected summary bounds %+v", out.Summary)
	}
	if !reflect.DeepEqual(out.Summary.AtCap, []string{"Naver"}) {
		t.Fatalf("expected Naver at cap, got %v", out.Summary.AtCap)
	}
	if !reflect.DeepEqual(out.Summary.AtFloor, []string{"Meta", "Karrot"}) {
		t.Fatalf("expected Meta and Karrot at floor, got %v", out.Summary.AtFloor)
	}
	if out.Summary.FloorsDropped {
		t.Fatalf("floors should not be dropped at the default budget")
	}
}

func TestRunnerReportsFloorsDropped(t *testing.T) {
	runner, err := NewRunner(nil, DefaultBoundsPolicy())
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}
	out := runner.Run(forecast.ChannelForecast{300, 200, 250, 150}, 50000, nil)
	if !out.Result.Succeeded() {
		t.Fatalf("expected success, got %s", out.Result.Reason)
	}
	if !out.Summary.FloorsDropped || len(out.Summary.Notes) != 1 {
		t.Fatalf("expected a floors-dropped note, got %+v", out.Summary)
	}
}

func TestRunnerBoundsFailureIsFailedResult(t *testing.T) {
	runner, err := NewRunner(zap.NewNop(), DefaultBoundsPolicy())
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}
	out := runner.Run(forecast.ChannelForecast{300}, -1, nil)
	if out.Result.Status != StatusFailed || out.Result.Reason == "" {
		t.Fatalf("expected failed result with reason, got %+v", out.Result)
	}
	if out.Bounds != nil {
		t.Fatalf("expected no bounds, got %v", out.Bounds)
	}
}

func TestNewRunnerRejectsInvalidPolicy(t *testing.T) {
	if _, err := NewRunner(zap.NewNop(), BoundsPolicy{MinDefault: 1, MaxRatio: -1}); err == nil {
		t.Fatalf("expected error for negative ratio")
	}
}
