package main

import "testing"

const electionPrefix = "campusvote/contexts/election-administration/election-service"

func TestCheckImport(t *testing.T) {
	tests := []struct {
		layer      string
		importPath string
		broken     int
	}{
		{"domain", "strings", 0},
		{"domain", electionPrefix + "/domain/entities", 0},
		{"domain", electionPrefix + "/adapters/memory", 2},
		{"domain", "campusvote/internal/platform/config", 2},
		{"domain", "campusvote/internal/shared/events", 1},
		{"domain", "gorm.io/gorm", 1},
		{"ports", "campusvote/internal/shared/events", 0},
		{"application", electionPrefix + "/ports", 0},
		{"application", "github.com/cenkalti/backoff/v4", 0},
		{"application", "golang.org/x/sync/errgroup", 0},
		{"application", "campusvote/internal/platform/messaging", 2},
		{"application", electionPrefix + "/adapters/postgres", 2},
		{"application", "campusvote/contexts/other/service/ports", 2},
		{"adapters", "gorm.io/gorm", 0},
		{"adapters", "campusvote/internal/platform/db", 0},
	}
	for _, tc := range tests {
		t.Run(tc.layer+" "+tc.importPath, func(t *testing.T) {
			got := checkImport(tc.layer, tc.importPath, electionPrefix)
			if len(got) != tc.broken {
				t.Fatalf("expected %d broken rules, got %v", tc.broken, got)
			}
		})
	}
}
