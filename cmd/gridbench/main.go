// Command gridbench drives a collision grid through a simulated scene and
// reports query load and timing.
package main

import (
	"flag"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"

	"github.com/ScottBrooks/collisiongrid"
)

func main() {
	scenarioPath := flag.String("scenario", "", "scenario yaml, empty for the built in one")
	configPath := flag.String("config", "", "grid config yaml, empty for defaults")
	ticks := flag.Int("ticks", 0, "override the scenario tick count")
	csvPath := flag.String("csv", "", "write per tick stats to this file")
	seed := flag.Int64("seed", 0, "override the scenario seed")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logrus.SetOutput(colorable.NewColorableStdout())
	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true})
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	collisiongrid.SetLogger(logrus.NewEntry(logrus.StandardLogger()))

	sc, err := loadScenario(*scenarioPath)
	if err != nil {
		logrus.Fatalf("Loading scenario: %v", err)
	}
	if *ticks > 0 {
		sc.Ticks = *ticks
	}
	if *seed != 0 {
		sc.Seed = *seed
	}
	cfg, err := collisiongrid.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("Loading config: %v", err)
	}

	b, err := newBench(sc, cfg)
	if err != nil {
		logrus.Fatalf("Building scene: %v", err)
	}
	defer b.scene.Hash.Close()
	logrus.Infof("Running %d ticks on %s", sc.Ticks, b)

	rows := b.run(sc.Ticks)
	if *csvPath != "" {
		if err := writeCSV(*csvPath, rows); err != nil {
			logrus.Errorf("Writing csv: %v", err)
			os.Exit(1)
		}
	}
	summarize(rows, b.scene.Hash.Grid()).log()

	st := b.scene.Hash.Stats()
	logrus.WithFields(logrus.Fields{
		"records": st.Records,
		"global":  st.GlobalRecords,
		"blocks":  st.PoolBlocks,
		"queries": st.Queries,
		"purged":  st.Purged,
		"refused": st.Refused,
	}).Info("Hash")
}
