// Command aerc-probe executes a YAML-described list of GET/POST requests
// against an App Engine backend and reports status codes and byte counts.
// It authenticates in non-interactive mode with a pre-obtained token, or
// with a jwtgrant service identity when key material is configured.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/feldspar-io/aerc"
	"github.com/feldspar-io/aerc/jwtgrant"
)

type probeConfig struct {
	AppURI         string         `yaml:"app_uri"`
	Token          string         `yaml:"token"`
	UserAgent      string         `yaml:"user_agent"`
	TimeoutSeconds int            `yaml:"timeout_seconds"`
	Grant          *grantConfig   `yaml:"grant"`
	Requests       []probeRequest `yaml:"requests"`
}

type grantConfig struct {
	Account       string `yaml:"account"`
	TokenURL      string `yaml:"token_url"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
	SigningMethod string `yaml:"signing_method"`
	PrivateKeyHex string `yaml:"private_key_hex"`
}

type probeRequest struct {
	Method  string              `yaml:"method"`
	URI     string              `yaml:"uri"`
	Headers map[string][]string `yaml:"headers"`
	Body    string              `yaml:"body"`
}

func main() {
	var (
		configPath = flag.String("config", "probe.yaml", "path to the probe config file")
		verbose    = flag.Bool("v", false, "print a metrics snapshot after the run")
	)
	flag.Parse()

	data, err := os.ReadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read config: %v\n", err)
		os.Exit(2)
	}
	var cfg probeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse config: %v\n", err)
		os.Exit(2)
	}
	if cfg.AppURI == "" || len(cfg.Requests) == 0 {
		fmt.Fprintln(os.Stderr, "config needs app_uri and at least one request")
		os.Exit(2)
	}

	client, err := buildClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build client: %v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()
	failures := 0
	for _, r := range cfg.Requests {
		if r.Method == "" {
			r.Method = http.MethodGet
		}
		headers := http.Header(r.Headers)
		start := time.Now()

		var resp *aerc.Response
		switch r.Method {
		case http.MethodGet:
			resp, err = client.Get(ctx, r.URI, headers)
		case http.MethodPost:
			resp, err = client.Post(ctx, r.URI, headers, []byte(r.Body))
		default:
			fmt.Fprintf(os.Stderr, "unsupported method %q for %s\n", r.Method, r.URI)
			failures++
			continue
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %s failed: %s\n", r.Method, r.URI, client.ErrorMessage())
			failures++
			continue
		}
		fmt.Printf("%-4s %s -> %d (%d bytes, %s)\n",
			r.Method, r.URI, resp.Status, len(resp.Body), time.Since(start).Round(time.Millisecond))
	}

	if *verbose {
		snap := client.MetricsSnapshot()
		for id, v := range snap.Counters {
			if v > 0 {
				fmt.Printf("metric[%d] = %d\n", id, v)
			}
		}
	}
	if failures > 0 {
		os.Exit(1)
	}
}

func buildClient(cfg probeConfig) (*aerc.Client, error) {
	full := aerc.DefaultConfig()
	if cfg.UserAgent != "" {
		full.Transport.UserAgent = cfg.UserAgent
	}
	if cfg.TimeoutSeconds > 0 {
		full.Transport.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	builder := aerc.New().WithAppURI(cfg.AppURI).WithConfig(full)

	switch {
	case cfg.Token != "":
		builder = builder.WithToken(cfg.Token)
	case cfg.Grant != nil:
		provider, err := newGrantProvider(*cfg.Grant)
		if err != nil {
			return nil, err
		}
		builder = builder.WithCredentialProvider(aerc.Identity{Account: cfg.Grant.Account}, provider)
	default:
		return nil, fmt.Errorf("config needs a token or a grant section")
	}
	return builder.Build()
}

func newGrantProvider(g grantConfig) (*jwtgrant.Provider, error) {
	key, err := hex.DecodeString(g.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("grant private key: %w", err)
	}
	return jwtgrant.New(jwtgrant.Config{
		TokenURL:      g.TokenURL,
		Issuer:        g.Issuer,
		Audience:      g.Audience,
		SigningMethod: jwtgrant.SigningMethod(g.SigningMethod),
		PrivateKey:    key,
	})
}
