package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/lealre/natours-backend/internal/config"
	"github.com/lealre/natours-backend/internal/logx"
	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/services/reviews"
	"github.com/rs/zerolog/log"
)

// store is what a reconcile run reads and repairs.
type store interface {
	GetTourIds(ctx context.Context) ([]string, error)
	GetReviewedTourIds(ctx context.Context) ([]string, error)
	TourExists(ctx context.Context, id string) (bool, error)
	DeleteReviewsByTourId(ctx context.Context, tourId string) (int64, error)
}

type recomputer interface {
	Recompute(ctx context.Context, tourId string) (mongodb.RatingStats, error)
}

type report struct {
	Recomputed     int64
	Failed         int64
	OrphanReviews  int64
	OrphanTourRefs int64
}

func main() {
	workers := flag.Int("workers", 5, "number of tours recomputed in parallel")
	flag.Parse()

	os.Exit(run(*workers))
}

// run returns the exit code once the MongoDB client is disconnected.
func run(workers int) int {
	cfg, err := config.LoadDatabase()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return 1
	}

	logger := logx.New(cfg.LogLevel, cfg.LogFormat)
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logx.WithLogger(ctx, logger)

	logger.Info().Msg("starting ratings reconcile")

	client, err := mongodb.Connect(ctx, cfg.MongoURI)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to MongoDB")
		return 1
	}
	defer client.Disconnect(context.Background())

	db := mongodb.NewDB(client, cfg.MongoDB)
	recomputer := reviews.NewRecomputer(db, cfg.RecomputeMaxRetries, cfg.RecomputeTimeout)

	result, err := reconcile(ctx, db, recomputer, workers)
	if err != nil {
		logger.Error().Err(err).Msg("reconcile failed")
		return 1
	}

	logger.Info().
		Int64("recomputed", result.Recomputed).
		Int64("failed", result.Failed).
		Int64("orphan_tours", result.OrphanTourRefs).
		Int64("orphan_reviews", result.OrphanReviews).
		Msg("reconcile completed")

	return exitCode(result)
}

func exitCode(result report) int {
	if result.Failed > 0 {
		return 1
	}
	return 0
}

/*
reconcile repairs what a crash between a review write and its rating
recompute, or between a tour delete and its review cascade, can leave behind.

Reviews pointing at a missing tour are deleted first. Every tour then gets its
ratings rebuilt from its reviews by a pool of workers.
*/
func reconcile(ctx context.Context, db store, recomputer recomputer, workerCount int) (report, error) {
	logger := logx.FromContext(ctx)
	var result report

	reviewedIds, err := db.GetReviewedTourIds(ctx)
	if err != nil {
		return result, err
	}
	for _, tourId := range reviewedIds {
		exists, err := db.TourExists(ctx, tourId)
		if err != nil {
			return result, err
		}
		if exists {
			continue
		}

		deleted, err := db.DeleteReviewsByTourId(ctx, tourId)
		if err != nil {
			return result, err
		}
		result.OrphanTourRefs++
		result.OrphanReviews += deleted
		logger.Info().Str("tour_id", tourId).Int64("deleted", deleted).Msg("removed reviews of missing tour")
	}

	tourIds, err := db.GetTourIds(ctx)
	if err != nil {
		return result, err
	}
	logger.Info().Int("tours", len(tourIds)).Msg("recomputing ratings")

	if workerCount < 1 {
		workerCount = 1
	}

	jobs := make(chan string, len(tourIds))
	wg := sync.WaitGroup{}
	var recomputed, failed atomic.Int64

	// start workers
	for i := 0; i < workerCount; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for tourId := range jobs {
				if ctx.Err() != nil {
					failed.Add(1)
					continue
				}
				if _, err := recomputer.Recompute(ctx, tourId); err != nil {
					logger.Error().Err(err).Str("tour_id", tourId).Msg("failed to recompute ratings")
					failed.Add(1)
					continue
				}
				recomputed.Add(1)
			}
		}()
	}

	// feed jobs
	for _, tourId := range tourIds {
		jobs <- tourId
	}

	close(jobs)
	wg.Wait()

	result.Recomputed = recomputed.Load()
	result.Failed = failed.Load()
	return result, nil
}
