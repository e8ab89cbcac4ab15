// Copyright (C) 2025 SAGE-X Project
//
// This file is part of seal.
//
// seal is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// seal is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with seal.  If not, see <https://www.gnu.org/licenses/>.

package verify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sage-x-project/seal/digest"
	"github.com/sage-x-project/seal/encoding"
	"github.com/sage-x-project/seal/field"
)

// SourceOptions configures the URL fetch side of the source-reference
// verifier, mirroring the HTTP-client options spec.md §6 names.
type SourceOptions struct {
	CertInsecure bool
	CACertFile   string
	Timeout      time.Duration
}

// sourceHTTPClient builds an *http.Client honoring cert-insecure and
// cacert, grounded on pkg/client/a2a_client.go's "wrap a standard
// http.Client, default it if unset" construction.
func sourceHTTPClient(opts SourceOptions) (*http.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	tlsConfig := &tls.Config{}
	if opts.CertInsecure {
		tlsConfig.InsecureSkipVerify = true
	} else if opts.CACertFile != "" {
		pem, err := os.ReadFile(opts.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("verify: read cacert %s: %w", opts.CACertFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("verify: cacert %s contains no usable certificates", opts.CACertFile)
		}
		tlsConfig.RootCAs = pool
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}, nil
}

// SourceOutcome reports whether the source-reference check matched. It is
// always advisory per spec.md §4.10: a mismatch never changes a record's
// Verdict, it only surfaces a warning to the caller.
type SourceOutcome struct {
	Matched bool
	Warning string
}

// Source implements spec.md §4.10: hash the file or URL named by srcf/src
// using the algorithm and encoding named by srca (<digest-algo>:<encoding>),
// and compare against srcd. Returns Matched=true with no warning when store
// carries neither src nor srcf (nothing to check).
func Source(ctx context.Context, store *field.Store, opts SourceOptions) (SourceOutcome, error) {
	srca := store.GetText("srca")
	srcd := store.GetText("srcd")
	if srcd == "" {
		return SourceOutcome{Matched: true}, nil
	}

	algoName, encName, err := splitSrca(srca)
	if err != nil {
		return SourceOutcome{}, err
	}

	h, err := digest.NewHash(digest.Algorithm(algoName))
	if err != nil {
		return SourceOutcome{}, fmt.Errorf("verify: source digest: %w", err)
	}

	switch {
	case store.GetText("srcf") != "":
		if err := hashLocalFile(h, store.GetText("srcf")); err != nil {
			return SourceOutcome{}, err
		}
	case strings.HasPrefix(store.GetText("src"), "http://") || strings.HasPrefix(store.GetText("src"), "https://"):
		if err := hashURL(ctx, h, store.GetText("src"), opts); err != nil {
			return SourceOutcome{}, err
		}
	default:
		return SourceOutcome{Matched: true}, nil
	}

	got := encodeDigest(encName, h.Sum(nil))
	if !strings.EqualFold(got, srcd) {
		return SourceOutcome{
			Matched: false,
			Warning: fmt.Sprintf("source reference mismatch: computed %s, record claims %s", got, srcd),
		}, nil
	}
	return SourceOutcome{Matched: true}, nil
}

func splitSrca(srca string) (algo, enc string, err error) {
	parts := strings.SplitN(srca, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("verify: malformed srca %q, expected algo:encoding", srca)
	}
	return parts[0], parts[1], nil
}

func encodeDigest(encName string, raw []byte) string {
	switch encName {
	case "HEX":
		return encoding.HexEncodeUpper(raw)
	case "base64":
		return encoding.Base64Encode(raw)
	default:
		return encoding.HexEncode(raw)
	}
}

// hashLocalFile streams srcf through h in 4 KiB chunks, per spec.md §4.10.
func hashLocalFile(h io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("verify: open source file %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 4096)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return fmt.Errorf("verify: hash source file %s: %w", path, err)
	}
	return nil
}

// hashURL fetches src and streams the body through h, honoring the
// cert-insecure/cacert options named by spec.md §6.
func hashURL(ctx context.Context, h io.Writer, src string, opts SourceOptions) error {
	client, err := sourceHTTPClient(opts)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("verify: build source request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("verify: fetch source %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("verify: fetch source %s: status %s", src, resp.Status)
	}

	if _, err := io.Copy(h, resp.Body); err != nil {
		return fmt.Errorf("verify: hash source %s: %w", src, err)
	}
	return nil
}
