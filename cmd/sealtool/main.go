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

// Command sealtool is the CLI surface spec.md §6 describes: a thin
// flag-based dispatcher over the library packages, one mode per run
// ("-g" generate, "-s"/"-S" sign locally/remotely, "-m"/"-M" manual
// local/remote sign, default verify). CLI parsing polish is explicitly
// out of scope per spec.md §1 — this mirrors the teacher's
// cmd/examples/*/main.go layout: one flat main, no subcommand framework.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sage-x-project/seal/config"
	"github.com/sage-x-project/seal/container"
	"github.com/sage-x-project/seal/container/walker"
	"github.com/sage-x-project/seal/digest"
	"github.com/sage-x-project/seal/field"
	"github.com/sage-x-project/seal/internal/outpath"
	"github.com/sage-x-project/seal/internal/sealog"
	"github.com/sage-x-project/seal/iowriter"
	"github.com/sage-x-project/seal/keyresolve"
	"github.com/sage-x-project/seal/record"
	"github.com/sage-x-project/seal/sealcrypto"
	"github.com/sage-x-project/seal/sign"
	"github.com/sage-x-project/seal/sign/local"
	"github.com/sage-x-project/seal/sign/remote"
	"github.com/sage-x-project/seal/verify"
	"github.com/sage-x-project/seal/version"
)

// Exit codes, OR'd across the file batch, per spec.md §6.
const (
	exitValid            = 0x00
	exitInvalid          = 0x01
	exitUnsigned         = 0x02
	exitNotValidated     = 0x04
	exitNotAuthenticated = 0x08
	exitRevoked          = 0x10
	exitFatal            = 0x80
)

type cliArgs struct {
	generate     bool
	signLocal    bool
	signRemote   bool
	manualLocal  string
	manualRemote string
	manualSet    bool

	domain  string
	keyFile string
	ka      string
	da      string
	kv      string
	sf      string
	out     string
	options string
	dnsFile string
	apiURL  string
	apiKey  string
	id      string
	comment string
	info    string

	src  string
	srcA string
	srcD string
	srcF string

	caCert       string
	certInsecure bool
	configPath   string

	verbose bool
	showVer bool

	password string
	rsaBits  int
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("sealtool", flag.ContinueOnError)
	var a cliArgs

	fs.BoolVar(&a.generate, "g", false, "generate a key pair")
	fs.BoolVar(&a.signLocal, "s", false, "sign locally")
	fs.BoolVar(&a.signRemote, "S", false, "sign remotely")
	fs.StringVar(&a.manualLocal, "m", "", "manual local sign of a hex digest ('' for a stub record)")
	fs.StringVar(&a.manualRemote, "M", "", "manual remote sign of a hex digest ('' for a stub record)")

	fs.StringVar(&a.domain, "d", "", "domain")
	fs.StringVar(&a.keyFile, "k", "", "private key file")
	fs.StringVar(&a.ka, "K", "", "key algorithm (ka=)")
	fs.StringVar(&a.da, "A", "", "digest algorithm (da=)")
	fs.StringVar(&a.kv, "kv", "1", "key version (kv=)")
	fs.StringVar(&a.sf, "sf", "hex", "signature format (sf=)")
	fs.StringVar(&a.out, "o", "", "output filename template")
	fs.StringVar(&a.options, "O", "", "comma-separated options")
	fs.StringVar(&a.dnsFile, "D", "", "local DNS TXT override file")
	fs.StringVar(&a.apiURL, "u", "", "remote signing service URL")
	fs.StringVar(&a.apiKey, "a", "", "remote signing service API key")
	fs.StringVar(&a.id, "i", "", "id= free-text field")
	fs.StringVar(&a.comment, "c", "", "comment (comment=)")
	fs.StringVar(&a.info, "info", "", "info (info=)")

	fs.StringVar(&a.src, "src", "", "source reference URL/identifier")
	fs.StringVar(&a.srcA, "srca", "", "source reference digest-algo:encoding")
	fs.StringVar(&a.srcD, "srcd", "", "source reference expected digest")
	fs.StringVar(&a.srcF, "srcf", "", "source reference local file path")

	fs.StringVar(&a.caCert, "cacert", "", "CA certificate bundle")
	fs.BoolVar(&a.certInsecure, "cert-insecure", false, "skip TLS certificate verification")
	fs.StringVar(&a.configPath, "config", "", "configuration file path")

	fs.BoolVar(&a.verbose, "v", false, "verbose")
	fs.BoolVar(&a.showVer, "V", false, "show version and exit")

	fs.StringVar(&a.password, "password", "", "private-key PEM password")
	fs.IntVar(&a.rsaBits, "rsa-bits", 2048, "RSA key size for -g")

	if err := fs.Parse(args); err != nil {
		return exitFatal
	}

	if a.showVer {
		v := version.Get()
		fmt.Printf("sealtool %s (record version %s)\n", v.Version, v.RecordVersion)
		return exitValid
	}

	if a.configPath != "" {
		if err := applyConfigFile(&a, fs); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return exitFatal
		}
	}

	logger := sealog.New(a.verbose)

	switch {
	case a.generate:
		return runGenerate(a, logger)
	case flagWasSet(fs, "m"):
		return runManual(a, logger, a.manualLocal, false)
	case flagWasSet(fs, "M"):
		return runManual(a, logger, a.manualRemote, true)
	case a.signLocal, a.signRemote:
		return runSign(a, logger, fs.Args(), a.signRemote)
	default:
		return runVerify(a, logger, fs.Args())
	}
}

// flagWasSet reports whether name was explicitly passed on the command
// line, distinguishing "-m ''" (manual mode, stub record) from not
// passing -m at all (both otherwise look like an empty string default).
func flagWasSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// applyConfigFile loads a.configPath and fills in any option the
// command line itself did not set, per spec.md §6: config values are
// recognized under the same name as the CLI long option.
func applyConfigFile(a *cliArgs, fs *flag.FlagSet) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	setIfUnset := func(name string, dst *string, val string) {
		if val != "" && !flagWasSet(fs, name) {
			*dst = val
		}
	}
	setIfUnset("d", &a.domain, cfg.Domain)
	setIfUnset("k", &a.keyFile, cfg.KeyFile)
	setIfUnset("K", &a.ka, cfg.KA)
	setIfUnset("A", &a.da, cfg.DA)
	setIfUnset("kv", &a.kv, cfg.KV)
	setIfUnset("sf", &a.sf, cfg.SF)
	setIfUnset("o", &a.out, cfg.Out)
	setIfUnset("O", &a.options, cfg.Options)
	setIfUnset("D", &a.dnsFile, cfg.DNSFile)
	setIfUnset("u", &a.apiURL, cfg.APIURL)
	setIfUnset("a", &a.apiKey, cfg.APIKey)
	setIfUnset("i", &a.id, cfg.ID)
	setIfUnset("c", &a.comment, cfg.Comment)
	setIfUnset("info", &a.info, cfg.Info)
	setIfUnset("src", &a.src, cfg.Src)
	setIfUnset("srca", &a.srcA, cfg.SrcA)
	setIfUnset("srcd", &a.srcD, cfg.SrcD)
	setIfUnset("srcf", &a.srcF, cfg.SrcF)
	setIfUnset("cacert", &a.caCert, cfg.CACert)
	if !flagWasSet(fs, "cert-insecure") {
		a.certInsecure = cfg.CertInsecure
	}
	return nil
}

func runGenerate(a cliArgs, logger sealog.Logger) int {
	kt := keyTypeFromKA(a.ka)
	gk, err := local.Generate(kt, a.rsaBits, a.kv, []byte(a.password))
	if err != nil {
		logger.Errorf("generate: %v", err)
		return exitFatal
	}

	keyPath := a.keyFile
	if keyPath == "" {
		keyPath = "seal-key.pem"
	}
	if err := os.WriteFile(keyPath, gk.PrivateKeyPEM, 0o600); err != nil {
		logger.Errorf("write private key: %v", err)
		return exitFatal
	}
	fmt.Printf("Private key written to %s\n", keyPath)
	fmt.Println(gk.DNSLine)
	return exitValid
}

func keyTypeFromKA(ka string) sealcrypto.KeyType {
	switch ka {
	case "rsa":
		return sealcrypto.KeyTypeRSA
	case "secp256k1":
		return sealcrypto.KeyTypeSecp256k1
	case "ed25519":
		return sealcrypto.KeyTypeEd25519
	default:
		return sealcrypto.KeyTypeECDSA
	}
}

func loadLocalSigner(a cliArgs) (*local.Signer, error) {
	pemBytes, err := os.ReadFile(a.keyFile)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	kp, _, err := sealcrypto.LoadPrivateKeyPEM(pemBytes, []byte(a.password))
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}
	return local.NewSigner(kp), nil
}

func baseStore(a cliArgs) *field.Store {
	store := field.New()
	store.SetText("seal", "1")
	if a.domain != "" {
		store.SetText("d", a.domain)
	}
	if a.ka != "" {
		store.SetText("ka", a.ka)
	}
	if a.da != "" {
		store.SetText("da", a.da)
	}
	if a.kv != "" {
		store.SetText("kv", a.kv)
	}
	if a.sf != "" {
		store.SetText("sf", a.sf)
	}
	if a.id != "" {
		store.SetText("id", a.id)
	}
	if a.comment != "" {
		store.SetText("comment", a.comment)
	}
	if a.info != "" {
		store.SetText("info", a.info)
	}
	if a.srcA != "" {
		store.SetText("srca", a.srcA)
	}
	if a.srcD != "" {
		store.SetText("srcd", a.srcD)
	}
	if a.srcF != "" {
		store.SetText("srcf", a.srcF)
	}
	if a.src != "" {
		store.SetText("src", a.src)
	}
	return store
}

func runManual(a cliArgs, logger sealog.Logger, digestHex string, viaRemote bool) int {
	store := baseStore(a)

	if viaRemote {
		if a.apiURL == "" {
			logger.Errorf("manual remote sign requires -u")
			return exitFatal
		}
		httpSigner := remote.NewHTTPSigner(a.apiURL)
		adapter := &remoteDigestSigner{signer: httpSigner, apiKey: a.apiKey}
		rec, err := sign.ManualSign(store, digestHex, adapter)
		if err != nil {
			logger.Errorf("manual sign: %v", err)
			return exitFatal
		}
		fmt.Println(rec)
		return exitValid
	}

	if a.keyFile == "" {
		logger.Errorf("manual local sign requires -k")
		return exitFatal
	}
	signer, err := loadLocalSigner(a)
	if err != nil {
		logger.Errorf("%v", err)
		return exitFatal
	}
	if err := signer.Sign(store); err != nil { // dry run: populates @sigsize
		logger.Errorf("dry run: %v", err)
		return exitFatal
	}
	rec, err := sign.ManualSign(store, digestHex, signer)
	if err != nil {
		logger.Errorf("manual sign: %v", err)
		return exitFatal
	}
	fmt.Println(rec)
	return exitValid
}

// remoteDigestSigner adapts remote.HTTPSigner's Request/Response shape to
// sign.DigestSigner's store-centric Sign(store) contract, so ManualSign
// can drive either signer identically.
type remoteDigestSigner struct {
	signer *remote.HTTPSigner
	apiKey string
}

func (r *remoteDigestSigner) Sign(store *field.Store) error {
	req := remote.Request{
		Seal:   store.GetText("seal"),
		ID:     store.GetText("id"),
		APIKey: r.apiKey,
		KV:     store.GetText("kv"),
		KA:     store.GetText("ka"),
		DA:     store.GetText("da"),
		SF:     store.GetText("sf"),
	}
	if store.Has("@digest1") {
		req.Digest = store.GetBytes("@digest1")
	}
	resp, err := r.signer.Sign(context.Background(), req)
	if err != nil {
		return err
	}
	resp.FillStore(store)
	return nil
}

func runSign(a cliArgs, logger sealog.Logger, files []string, viaRemote bool) int {
	if len(files) == 0 {
		logger.Errorf("no input files")
		return exitFatal
	}
	opts, err := config.ParseOptions(a.options)
	if err != nil {
		logger.Errorf("%v", err)
		return exitFatal
	}

	var localSigner *local.Signer
	var remoteAdapter *remoteDigestSigner
	if viaRemote {
		if a.apiURL == "" {
			logger.Errorf("remote sign requires -u")
			return exitFatal
		}
		remoteAdapter = &remoteDigestSigner{signer: remote.NewHTTPSigner(a.apiURL), apiKey: a.apiKey}
	} else {
		if a.keyFile == "" {
			logger.Errorf("local sign requires -k")
			return exitFatal
		}
		localSigner, err = loadLocalSigner(a)
		if err != nil {
			logger.Errorf("%v", err)
			return exitFatal
		}
	}

	code := exitValid
	for _, path := range files {
		if err := signOneFile(a, opts, logger, path, localSigner, remoteAdapter); err != nil {
			logger.Errorf("%s: %v", path, err)
			code |= exitFatal
		}
	}
	return code
}

func signOneFile(a cliArgs, opts config.Options, logger sealog.Logger, path string, localSigner *local.Signer, remoteAdapter *remoteDigestSigner) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	format := container.Identify(data)
	if format == container.FormatUnknown {
		return fmt.Errorf("unrecognised container format")
	}
	w, err := container.WalkerFor(format)
	if err != nil {
		return err
	}

	store := baseStore(a)
	container.ClassifyBeforeBuild(format, store, data)

	var signer sign.DigestSigner
	if localSigner != nil {
		signer = localSigner
	} else {
		signer = remoteAdapter
	}
	if err := signer.Sign(store); err != nil { // dry run -> @sigsize
		return fmt.Errorf("dry run: %w", err)
	}

	insertOffset, err := w.PickInsertionOffset(data)
	if err != nil {
		return fmt.Errorf("pick insertion offset: %w", err)
	}

	var prevSFlags string
	block, err := w.BuildBlock(store, int64(len(data)), insertOffset, prevSFlags)
	if err != nil {
		return fmt.Errorf("build block: %w", err)
	}

	outPath := path
	if a.out != "" {
		outPath, err = outpath.Expand(a.out, path)
		if err != nil {
			return fmt.Errorf("output path: %w", err)
		}
	}
	if opts.Test {
		fmt.Printf("[%s] test mode: would write %d bytes to %s\n", path, len(block), outPath)
		return nil
	}

	// RIFF's outer size and zip's EOCD comment length both cover the
	// inserted block, so they are patched in data before it is written.
	switch format {
	case container.FormatRIFF:
		walker.PatchOuterSize(data, len(block))
	case container.FormatZip:
		if eocd := bytes.LastIndex(data[:len(data)-18], []byte{0x50, 0x4B, 0x05, 0x06}); eocd >= 0 {
			walker.PatchCommentLength(data, eocd, len(data)-eocd-22+len(block))
		}
	}

	if err := iowriter.Insert(data, outPath, block, insertOffset, store); err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	if _, err := digest.Digest(store, outPath, ""); err != nil {
		return fmt.Errorf("digest: %w", err)
	}
	if err := signer.Sign(store); err != nil { // real sign
		return fmt.Errorf("sign: %w", err)
	}

	sigBytes := []byte(store.GetText("@signatureenc"))
	if err := iowriter.Finalize(outPath, store, sigBytes); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}

	fmt.Printf("[%s] signed -> %s\n", path, outPath)
	return nil
}

func runVerify(a cliArgs, logger sealog.Logger, files []string) int {
	if len(files) == 0 {
		logger.Errorf("no input files")
		return exitFatal
	}

	resolver := keyresolve.New()
	if a.dnsFile != "" {
		line, err := os.ReadFile(a.dnsFile)
		if err != nil {
			logger.Errorf("read dns file: %v", err)
			return exitFatal
		}
		if err := resolver.LoadDefaultFile(string(line)); err != nil {
			logger.Errorf("load dns file: %v", err)
			return exitFatal
		}
	}

	code := exitValid
	for _, path := range files {
		fileCode, err := verifyOneFile(a, logger, resolver, path)
		if err != nil {
			logger.Errorf("%s: %v", path, err)
			code |= exitFatal
			continue
		}
		code |= fileCode
	}
	return code
}

func verifyOneFile(a cliArgs, logger sealog.Logger, resolver *keyresolve.Resolver, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	format := container.Identify(data)
	if format == container.FormatUnknown {
		return exitUnsigned, nil
	}
	w, err := container.WalkerFor(format)
	if err != nil {
		return 0, err
	}

	windows := w.Scan(data)
	if len(windows) == 0 {
		return exitUnsigned, nil
	}

	ctx := context.Background()
	fileCode := 0
	var prevS *field.Store
	ordinal := 0
	for _, win := range windows {
		parsed, ok := record.Parse(data[win.Start:win.End], 0, int64(win.Start), ordinal)
		if !ok {
			continue
		}
		ordinal++
		store := parsed.Store
		if prevS != nil {
			copyOffsets(prevS, store, "@s", "@p")
		}

		res, err := verify.Record(ctx, store, path, resolver, verify.Options{})
		if err != nil {
			fileCode |= exitFatal
			logger.Errorf("%s: %v", path, err)
			continue
		}
		for _, w := range res.Warnings {
			logger.Warnf("%s: %s", path, w)
		}
		if store.Has("srcd") {
			outcome, err := verify.Source(ctx, store, verify.SourceOptions{
				CertInsecure: a.certInsecure,
				CACertFile:   a.caCert,
			})
			if err != nil {
				logger.Warnf("%s: source reference check: %v", path, err)
			} else if !outcome.Matched {
				logger.Warnf("%s: %s", path, outcome.Warning)
			}
		}
		fileCode |= int(res.Verdict)
		logger.Verbosef("%s: record %d verdict=%s", path, ordinal, res.Verdict)
		prevS = store
	}
	return fileCode, nil
}

// copyOffsets copies srcKey (a previous record's @s) into dst's dstKey
// (@p), implementing spec.md §4.9's cross-record check: signature #n sees
// @p set to the (n-1)-th record's @s.
func copyOffsets(src, dst *field.Store, srcKey, dstKey string) {
	for i := 0; i < 2; i++ {
		if v, ok := src.GetIndexed(srcKey, i, field.KindSizeArray); ok {
			dst.SetIndexed(dstKey, i, v, field.KindSizeArray)
		}
	}
}
