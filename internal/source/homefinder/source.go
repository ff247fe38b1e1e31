package homefinder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"village_tracker/internal/domain"
)

const SourceName = "The Villages Homefinder"

// The homefinder is an Angular Material SPA rendering listings into a
// virtual-repeat list, so cards only exist in the DOM after scrolling.
const (
	cardSelector = "md-card.propertyCard"

	scrollJS = `(function() {
		var scroller = document.querySelector('.md-virtual-repeat-scroller');
		if (!scroller) return 0;
		scroller.scrollTop = scroller.scrollHeight;
		return scroller.scrollHeight;
	})()`

	extractJS = `Array.from(document.querySelectorAll('md-card.propertyCard')).map(function(card) {
		var text = card.innerText || '';
		var lower = text.toLowerCase();

		var villageEl = card.querySelector('.prop_village, .ng-binding');
		var village = villageEl ? villageEl.innerText.trim() : '';

		var status = 'active';
		if (lower.indexOf('under contract') !== -1) {
			status = 'under contract';
		} else if (lower.indexOf('pending') !== -1) {
			status = 'pending';
		}

		var mls = text.match(/MLS[#:\s]*([A-Za-z0-9-]+)/i);

		return {
			village: village,
			status: status,
			source_id: mls ? mls[1] : '',
			raw: text
		};
	})`
)

// Config holds homefinder scrape settings.
type Config struct {
	URL          string
	Timeout      time.Duration
	ScrollPause  time.Duration
	StableRounds int
}

// Source fetches raw listing rows by driving a headless browser over the
// homefinder SPA. It implements service.Source; everything network-bound
// lives here.
type Source struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		cfg:    cfg,
		logger: logger.With("source", "homefinder"),
	}
}

func (s *Source) Name() string {
	return SourceName
}

// FetchRows loads the page, scrolls the virtual list until its height stops
// growing, and extracts one raw row per listing card.
func (s *Source) FetchRows(ctx context.Context) ([]domain.RawRow, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}),
	)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, s.cfg.Timeout)
	defer cancelTimeout()

	s.logger.Info("loading homefinder", "url", s.cfg.URL)

	err := chromedp.Run(browserCtx,
		chromedp.Navigate(s.cfg.URL),
		chromedp.WaitVisible(cardSelector, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("load homefinder page: %w", err)
	}

	if err := s.scrollUntilStable(browserCtx); err != nil {
		return nil, fmt.Errorf("scroll listing view: %w", err)
	}

	var rows []domain.RawRow
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(extractJS, &rows)); err != nil {
		return nil, fmt.Errorf("extract listing cards: %w", err)
	}

	s.logger.Info("extracted listing cards", "count", len(rows))

	return rows, nil
}

// scrollUntilStable keeps scrolling to the bottom of the virtual list until
// the scroll height is unchanged for the configured number of rounds.
func (s *Source) scrollUntilStable(ctx context.Context) error {
	var lastHeight, stable int

	for {
		var height int
		if err := chromedp.Run(ctx, chromedp.Evaluate(scrollJS, &height)); err != nil {
			return err
		}

		if height == lastHeight {
			stable++
		} else {
			stable = 0
		}
		if stable >= s.cfg.StableRounds {
			return nil
		}
		lastHeight = height

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.ScrollPause):
		}
	}
}
