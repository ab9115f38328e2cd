package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/client"
	"github.com/vpnda/statement-relay/pkg/config"
	"github.com/vpnda/statement-relay/pkg/dispatcher"
	"github.com/vpnda/statement-relay/pkg/http"
	"github.com/vpnda/statement-relay/pkg/parser"
	"github.com/vpnda/statement-relay/pkg/transport"
	"github.com/vpnda/statement-relay/pkg/utils"
)

func runTab(ctx context.Context, curlFile string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}
	if curlFile == "" {
		curlFile = cfg.Tab.CurlFile
	}

	page, err := buildPage(cfg.Tab, curlFile)
	if err != nil {
		return err
	}
	page.ProxyFetcher = client.New(cfg.Coordinator.URL, nil)
	if cfg.Log.DebugHTTP {
		page.Client.Transport = utils.DebugRoundTripperWithUnderlying(page.Client.Transport)
	}

	d := dispatcher.New(page, http.DefaultTable())
	if adapter, err := d.Adapter(); err != nil {
		log.Warn().Err(err).Str("page", page.URL().String()).Msg("page is not a supported bank, requests will fail")
	} else {
		log.Info().Str("bank", adapter.ID()).Str("page", page.URL().String()).Msg("adapter selected")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = transport.NewTabConn(d, page.URL().String()).Run(ctx, cfg.Coordinator.URL)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildPage describes the bank page either from a copied curl command or from
// the tab section of the configuration.
func buildPage(opts config.TabOptions, curlFile string) (*bank.StaticPage, error) {
	if curlFile != "" {
		return pageFromCurl(curlFile)
	}
	if opts.PageURL == "" {
		return nil, fmt.Errorf("tab.pageUrl is not set and no curl file was given")
	}

	page, err := bank.NewStaticPage(opts.PageURL, opts.Cookies)
	if err != nil {
		return nil, fmt.Errorf("invalid tab.pageUrl: %w", err)
	}
	for k, v := range opts.LocalStorage {
		page.Local[k] = v
	}
	for k, v := range opts.SessionStorage {
		page.Session[k] = v
	}
	return page, nil
}

func pageFromCurl(path string) (*bank.StaticPage, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("error opening curl file: %w", err)
		}
		defer f.Close()
		r = f
	} else {
		fmt.Println("Paste the curl command copied from the bank page, then EOF:")
	}

	input, err := parser.ReadCurlCommand(r)
	if err != nil {
		return nil, err
	}
	cmd, err := parser.ParseCurlCommand(input)
	if err != nil {
		return nil, fmt.Errorf("error parsing curl command: %w", err)
	}
	log.Debug().Str("curl", cmd.String()).Msg("parsed curl command")
	return cmd.Page()
}
