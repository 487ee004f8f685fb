package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lidacacau/feed-service/internal/dismissal"
	"lidacacau/feed-service/internal/geo"
	"lidacacau/feed-service/internal/model"
	"lidacacau/feed-service/internal/ranking"
	"lidacacau/feed-service/internal/source"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank jobs or offers from JSON files",
	Long: "Rank a JSON array of job candidates (--jobs) or offer candidates (--offers) the way the feed API does, " +
		"and print the ordered feed as JSON. No database or Redis is needed.",
	RunE: runRank,
}

var (
	rankJobsFile      string
	rankOffersFile    string
	rankPrefs         string
	rankLat           float64
	rankLng           float64
	rankRadius        string
	rankDismissedFile string
	rankExcludeOwner  string
	rankOutputFile    string
)

func init() {
	rankCmd.Flags().StringVar(&rankJobsFile, "jobs", "", "Path to a JSON array of job candidates")
	rankCmd.Flags().StringVar(&rankOffersFile, "offers", "", "Path to a JSON array of offer candidates")
	rankCmd.Flags().StringVar(&rankPrefs, "prefs", "", "Comma-separated preferred service type ids")
	rankCmd.Flags().Float64Var(&rankLat, "lat", geo.FallbackLocation.Latitude, "User latitude")
	rankCmd.Flags().Float64Var(&rankLng, "lng", geo.FallbackLocation.Longitude, "User longitude")
	rankCmd.Flags().StringVar(&rankRadius, "radius", "all", "Radius filter: all, 10, 25, 50 or 100")
	rankCmd.Flags().StringVar(&rankDismissedFile, "dismissed", "", "Path to a JSON array of dismissed job ids")
	rankCmd.Flags().StringVar(&rankExcludeOwner, "exclude-owner", "", "Producer id whose own offers are hidden")
	rankCmd.Flags().StringVarP(&rankOutputFile, "out", "o", "", "Path to output JSON file (default stdout)")

	rankCmd.MarkFlagsMutuallyExclusive("jobs", "offers")
	rankCmd.MarkFlagsOneRequired("jobs", "offers")

	rootCmd.AddCommand(rankCmd)
}

// rankOptions carries the parsed flags shared by both feed kinds.
type rankOptions struct {
	prefs        model.UserPreferences
	location     geo.Coordinate
	radius       ranking.Radius
	dismissed    *dismissal.IDSet
	excludeOwner string
	now          time.Time
}

func runRank(_ *cobra.Command, _ []string) error {
	radius, err := ranking.ParseRadius(rankRadius)
	if err != nil {
		return err
	}

	opts := rankOptions{
		prefs:        model.NewPreferences(source.KnownServiceTypes(splitList(rankPrefs))...),
		location:     geo.Coordinate{Latitude: rankLat, Longitude: rankLng},
		radius:       radius,
		dismissed:    dismissal.NewIDSet(),
		excludeOwner: rankExcludeOwner,
		now:          time.Now(),
	}

	if rankDismissedFile != "" {
		if err := readJSON(rankDismissedFile, opts.dismissed); err != nil {
			return err
		}
	}

	out := io.Writer(os.Stdout)
	if rankOutputFile != "" {
		f, err := os.Create(rankOutputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if rankJobsFile != "" {
		var jobs []model.JobCandidate
		if err := readJSON(rankJobsFile, &jobs); err != nil {
			return err
		}
		return writeFeed(out, rankJobs(jobs, opts))
	}

	var offers []model.OfferCandidate
	if err := readJSON(rankOffersFile, &offers); err != nil {
		return err
	}
	return writeFeed(out, rankOffers(offers, opts))
}

// rankJobs drops rejected candidates, ranks the rest and applies the radius.
func rankJobs(jobs []model.JobCandidate, opts rankOptions) []model.RankedJob {
	accepted := make([]model.JobCandidate, 0, len(jobs))
	for _, j := range jobs {
		if err := source.AcceptJob(j); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: skipping job: %v\n", err)
			continue
		}
		accepted = append(accepted, j)
	}
	feed := ranking.BuildJobFeed(accepted, opts.dismissed, opts.prefs, opts.location, opts.now)
	return ranking.FilterByRadius(feed, opts.radius)
}

func rankOffers(offers []model.OfferCandidate, opts rankOptions) []model.RankedOffer {
	accepted := make([]model.OfferCandidate, 0, len(offers))
	for _, o := range offers {
		if err := source.AcceptOffer(o); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: skipping offer: %v\n", err)
			continue
		}
		accepted = append(accepted, o)
	}
	feed := ranking.BuildOfferFeed(accepted, opts.excludeOwner, opts.prefs, opts.location, opts.now)
	return ranking.FilterByRadius(feed, opts.radius)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeFeed(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write feed: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
