package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/valinor-ai/skillgate/internal/certfetch"
	"github.com/valinor-ai/skillgate/internal/skillauth"
)

// errRejected signals a completed run whose verdict was negative.
var errRejected = errors.New("request rejected")

type verifyOptions struct {
	bodyFile  string
	signature string
	certURL   string
	certFile  string
	appID     string
	tolerance time.Duration
	at        string
	sanMatch  string
}

type verifyResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

func newVerifyCmd(root *rootOptions) *cobra.Command {
	o := &verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the verification pipeline over a captured skill request",
		Long: "Replays a captured request body and its Signature and SignatureCertChainUrl\n" +
			"headers through the same checks the gateway applies, printing the verdict as JSON.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVerify(cmd, root, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.bodyFile, "body", "b", "", "file holding the raw request body (required)")
	f.StringVarP(&o.signature, "signature", "s", "", "value of the Signature header (required)")
	f.StringVarP(&o.certURL, "cert-url", "u", "", "value of the SignatureCertChainUrl header (required)")
	f.StringVar(&o.certFile, "cert-file", "", "use this PEM file instead of downloading the certificate")
	f.StringVar(&o.appID, "app-id", "", "expected application id (default: skill.application_id from config)")
	f.DurationVar(&o.tolerance, "tolerance", 0, "freshness tolerance (default: from config)")
	f.StringVar(&o.at, "at", "", "evaluate as of this RFC 3339 time instead of now")
	f.StringVar(&o.sanMatch, "san-match", "", "subject alt name match mode: exact or substring")
	_ = cmd.MarkFlagRequired("body")
	_ = cmd.MarkFlagRequired("signature")
	_ = cmd.MarkFlagRequired("cert-url")
	return cmd
}

type fileFetcher struct{ path string }

func (f fileFetcher) Fetch(context.Context, string) ([]byte, error) {
	return os.ReadFile(f.path)
}

func runVerify(cmd *cobra.Command, root *rootOptions, o *verifyOptions) error {
	cfg, err := root.load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	appID := o.appID
	if appID == "" {
		appID = cfg.Skill.ApplicationID
	}
	tolerance := o.tolerance
	if tolerance == 0 {
		tolerance = cfg.Skill.FreshnessTolerance()
	}
	sanMatch := o.sanMatch
	if sanMatch == "" {
		sanMatch = cfg.Skill.SANMatch
	}
	mode, err := skillauth.ParseSANMatchMode(sanMatch)
	if err != nil {
		return err
	}

	var opts []skillauth.ValidatorOption
	if o.at != "" {
		at, err := time.Parse(time.RFC3339, o.at)
		if err != nil {
			return fmt.Errorf("parsing --at: %w", err)
		}
		opts = append(opts, skillauth.WithClock(func() time.Time { return at }))
	}

	var fetcher skillauth.Fetcher = certfetch.New(certfetch.Config{
		Timeout:  time.Duration(cfg.Certs.FetchTimeoutSecs) * time.Second,
		MaxBytes: cfg.Certs.FetchMaxBytes,
	}, nil, nil)
	if o.certFile != "" {
		fetcher = fileFetcher{path: o.certFile}
	}

	body, err := os.ReadFile(o.bodyFile)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}

	validator := skillauth.NewValidator(skillauth.Config{
		ApplicationID:      appID,
		FreshnessTolerance: tolerance,
		SANMatch:           mode,
	}, nil, fetcher, opts...)

	result := verifyResult{Valid: true}
	req, err := skillauth.ParseRequest(body, o.signature, o.certURL)
	if err == nil {
		err = validator.Validate(cmd.Context(), req)
	}
	if err != nil {
		result = verifyResult{Reason: skillauth.Reason(err), Error: err.Error()}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(result); encErr != nil {
		return encErr
	}
	if !result.Valid {
		return errRejected
	}
	return nil
}
