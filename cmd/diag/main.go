package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/star/isstracker/internal/kinematics"
	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/realtime"
	"github.com/star/isstracker/internal/trajectory"
)

func main() {
	file := flag.String("file", "", "read an OEM document from this file instead of fetching")
	url := flag.String("url", oem.DefaultSourceURL, "OEM feed URL")
	at := flag.String("at", "", "report the vector nearest this OEM epoch (default now)")
	live := flag.Bool("live", false, "also query the real-time position feed")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()

	var svs []oem.StateVector
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			fmt.Println("ERROR reading OEM file:", err)
			os.Exit(1)
		}
		svs, err = oem.Parse(f, logger)
		f.Close()
		if err != nil {
			fmt.Println("ERROR parsing OEM file:", err)
			os.Exit(1)
		}
	} else {
		start := time.Now()
		ds, err := oem.NewFetcher(*url, 0, 0, logger).Fetch(ctx)
		if err != nil {
			fmt.Println("ERROR fetching OEM feed:", err)
			os.Exit(1)
		}
		fmt.Printf("Fetched %s in %v\n", *url, time.Since(start).Round(time.Millisecond))
		svs = ds.StateVectors
	}

	ds := oem.NewDataset(*url, time.Now().UTC(), svs)
	fmt.Printf("Loaded %d state vectors\n", ds.Len())
	if ds.Len() == 0 {
		os.Exit(1)
	}
	r := ds.EpochRange()
	fmt.Printf("Epoch range: %s .. %s\n", oem.FormatEpoch(r.Min), oem.FormatEpoch(r.Max))

	target := time.Now().UTC()
	if *at != "" {
		t, err := oem.ParseEpoch(*at)
		if err != nil {
			fmt.Println("ERROR:", err)
			os.Exit(1)
		}
		target = t
	}

	sv, err := trajectory.FindClosest(ds.StateVectors, target)
	if err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
	fmt.Printf("Closest to %s: %s (%v away)\n", target.Format(time.RFC3339), sv.Epoch, sv.Time.Sub(target).Round(time.Second))
	fmt.Printf("  position km: %.3f %.3f %.3f\n", sv.X, sv.Y, sv.Z)

	if speed, err := kinematics.Speed(sv.XDot, sv.YDot, sv.ZDot); err != nil {
		fmt.Println("  speed: ERROR", err)
	} else {
		fmt.Printf("  speed: %.4f km/s\n", speed)
	}

	if g, err := kinematics.GroundPoint(sv.Position(), sv.Time); err != nil {
		fmt.Println("  ground point: ERROR", err)
	} else {
		fmt.Printf("  ground point: lat=%.4f° lon=%.4f° alt=%.1f km\n", g.LatitudeDeg, g.LongitudeDeg, g.AltitudeKm)
	}

	if *live {
		pos, err := realtime.NewClient("", 0, logger).Current(ctx)
		if err != nil {
			fmt.Println("Live position: ERROR", err)
			os.Exit(1)
		}
		fmt.Printf("Live position at %s: lat=%.4f° lon=%.4f°\n",
			time.Unix(pos.Timestamp, 0).UTC().Format(time.RFC3339), pos.Latitude, pos.Longitude)
	}
}
