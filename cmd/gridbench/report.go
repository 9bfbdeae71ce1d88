package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ScottBrooks/collisiongrid"
)

// TickRow is one line of the per tick CSV.
type TickRow struct {
	Tick           int     `csv:"tick"`
	Actors         int     `csv:"actors"`
	Records        int     `csv:"records"`
	GlobalRecords  int     `csv:"global_records"`
	Projectiles    int     `csv:"projectiles"`
	Queries        int     `csv:"queries"`
	Hits           int     `csv:"hits"`
	Contacts       int     `csv:"contacts"`
	Traces         int     `csv:"traces"`
	ProjectileHits int     `csv:"projectile_hits"`
	Encroached     int     `csv:"encroached"`
	Purged         int     `csv:"purged"`
	UpdateMicros   float64 `csv:"update_us"`
	QueryMicros    float64 `csv:"query_us"`
}

func writeCSV(path string, rows []TickRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := gocsv.Marshal(rows, f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Summary condenses a run.
type Summary struct {
	Ticks         int
	UpdateMean    float64
	UpdateStdDev  float64
	QueryMean     float64
	QueryP99      float64
	TotalHits     float64
	TotalPurged   float64
	OccupancyMean float64
	OccupancyMax  float64
	EmptyCells    int
}

func summarize(rows []TickRow, g *collisiongrid.Grid) Summary {
	s := Summary{Ticks: len(rows)}
	if len(rows) == 0 {
		return s
	}
	update := make([]float64, len(rows))
	query := make([]float64, len(rows))
	hits := make([]float64, len(rows))
	purged := make([]float64, len(rows))
	for i, r := range rows {
		update[i] = r.UpdateMicros
		query[i] = r.QueryMicros
		hits[i] = float64(r.Hits)
		purged[i] = float64(r.Purged)
	}
	s.UpdateMean, s.UpdateStdDev = stat.MeanStdDev(update, nil)
	s.QueryMean = stat.Mean(query, nil)
	sort.Float64s(query)
	s.QueryP99 = stat.Quantile(0.99, stat.Empirical, query, nil)
	s.TotalHits = floats.Sum(hits)
	s.TotalPurged = floats.Sum(purged)

	occ := g.Occupancy()
	counts := make([]float64, len(occ))
	for i, n := range occ {
		counts[i] = float64(n)
		if n == 0 {
			s.EmptyCells++
		}
	}
	s.OccupancyMean = stat.Mean(counts, nil)
	s.OccupancyMax = floats.Max(counts)
	return s
}

func (s Summary) log() {
	logrus.WithFields(logrus.Fields{
		"ticks":       s.Ticks,
		"update_mean": fmt.Sprintf("%.1fus", s.UpdateMean),
		"update_sd":   fmt.Sprintf("%.1fus", s.UpdateStdDev),
		"query_mean":  fmt.Sprintf("%.1fus", s.QueryMean),
		"query_p99":   fmt.Sprintf("%.1fus", s.QueryP99),
	}).Info("Timing")
	logrus.WithFields(logrus.Fields{
		"hits":        s.TotalHits,
		"purged":      s.TotalPurged,
		"occ_mean":    fmt.Sprintf("%.2f", s.OccupancyMean),
		"occ_max":     s.OccupancyMax,
		"empty_cells": s.EmptyCells,
	}).Info("Grid")
}
