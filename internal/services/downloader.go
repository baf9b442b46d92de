package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/coah80/yoinkgram/internal/config"
	"github.com/coah80/yoinkgram/internal/util"
)

var percentRe = regexp.MustCompile(`([\d.]+)%`)
var speedRe = regexp.MustCompile(`at\s+([\d.]+\s*\w+/s)`)
var etaRe = regexp.MustCompile(`ETA\s+(\S+)`)
var ytdlpErrorRe = regexp.MustCompile(`(?i)ERROR[:\s]+(.+?)(?:\n|$)`)

var (
	ErrArtifactMissing = errors.New("fetch succeeded but produced no file")
	ErrFetchTimeout    = errors.New("fetch timed out")
)

type YtdlpProgress struct {
	Percent float64
	Speed   string
	ETA     string
}

func ParseYtdlpProgress(text string) YtdlpProgress {
	var p YtdlpProgress
	if m := percentRe.FindStringSubmatch(text); len(m) > 1 {
		p.Percent, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := speedRe.FindStringSubmatch(text); len(m) > 1 {
		p.Speed = m[1]
	}
	if m := etaRe.FindStringSubmatch(text); len(m) > 1 {
		p.ETA = m[1]
	}
	return p
}

// FetchError is a non-zero exit of the fetch tool. Stderr is for logs
// only and never shown to users.
type FetchError struct {
	Kind   util.FetchErrorKind
	Stderr string
	Err    error
}

func (e *FetchError) Error() string {
	reason := "yt-dlp failed"
	if m := ytdlpErrorRe.FindStringSubmatch(e.Stderr); len(m) > 1 {
		reason = strings.TrimSpace(m[1])
	}
	return fmt.Sprintf("%s (%s): %v", reason, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type FetchRequest struct {
	URL string

	// Prefix names every file this request may create in the scratch dir.
	Prefix         string
	FormatSelector string
	ExtractAudio   bool
	UseCookies     bool
	OnProgress     func(YtdlpProgress)
}

type Artifact struct {
	Path string
	Ext  string
	Size int64
}

// Runner starts the fetch tool and blocks until it exits. Every output
// line is passed to onLine; the captured stderr is returned.
type Runner func(ctx context.Context, name string, args []string, onLine func(string)) (string, error)

type Fetcher struct {
	cfg *config.Config
	log *zap.Logger
	run Runner
}

// NewFetcher returns a Fetcher running yt-dlp. A nil run uses ExecRunner.
func NewFetcher(cfg *config.Config, log *zap.Logger, run Runner) *Fetcher {
	if run == nil {
		run = ExecRunner
	}
	return &Fetcher{cfg: cfg, log: log.Named("fetcher"), run: run}
}

// BuildArgs returns the yt-dlp argument list for req. The target is
// always last.
func (f *Fetcher) BuildArgs(req FetchRequest) []string {
	args := []string{
		"--no-playlist",
		"--newline",
		"-o", filepath.Join(f.cfg.ScratchDir, req.Prefix+".%(ext)s"),
	}
	if req.UseCookies {
		args = append(args, util.CookieArgs(f.cfg.CookiesFile, f.cfg.CookiesBrowser)...)
	}
	if f.cfg.UserAgent != "" {
		args = append(args, "--user-agent", f.cfg.UserAgent)
	}
	args = append(args, util.ProxyArgs(f.cfg.Proxies)...)
	if req.FormatSelector != "" {
		args = append(args, "-f", req.FormatSelector, "--merge-output-format", "mp4")
	}
	if req.ExtractAudio {
		args = append(args, "-x", "--audio-format", config.AudioFormat)
	}
	return append(args, req.URL)
}

// Fetch runs the tool under the configured timeout and returns the file it
// produced. A format-unavailable failure is retried exactly once without
// the format selector. On any error nothing with req.Prefix is left behind.
func (f *Fetcher) Fetch(ctx context.Context, req FetchRequest) (*Artifact, error) {
	if req.Prefix == "" {
		return nil, errors.New("fetch request has no prefix")
	}
	ctx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	art, err := f.attempt(ctx, req)
	var fe *FetchError
	if err != nil && req.FormatSelector != "" && errors.As(err, &fe) && fe.Kind == util.KindFormatUnavailable {
		f.log.Warn("Requested format unavailable, retrying with default format",
			zap.String("url", req.URL), zap.String("format", req.FormatSelector))
		util.RemoveByPrefix(f.cfg.ScratchDir, req.Prefix, f.log)
		req.FormatSelector = ""
		art, err = f.attempt(ctx, req)
	}
	if err != nil {
		util.RemoveByPrefix(f.cfg.ScratchDir, req.Prefix, f.log)
		return nil, err
	}
	return art, nil
}

func (f *Fetcher) attempt(ctx context.Context, req FetchRequest) (*Artifact, error) {
	args := f.BuildArgs(req)
	f.log.Debug("Running fetch tool", zap.String("path", f.cfg.YtdlpPath), zap.Strings("args", args))

	var mu sync.Mutex
	var lastProgress float64
	onLine := func(line string) {
		if req.OnProgress == nil || !strings.Contains(line, "[download]") || !strings.Contains(line, "%") {
			return
		}
		p := ParseYtdlpProgress(line)
		mu.Lock()
		shouldReport := p.Percent > 0 && (p.Percent > lastProgress+2 || p.Percent >= 100)
		if shouldReport {
			lastProgress = p.Percent
		}
		mu.Unlock()
		if shouldReport {
			req.OnProgress(p)
		}
	}

	stderr, err := f.run(ctx, f.cfg.YtdlpPath, args, onLine)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrFetchTimeout, f.cfg.FetchTimeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fe := &FetchError{Kind: util.ClassifyFetchError(stderr), Stderr: stderr, Err: err}
		f.log.Warn("Fetch tool failed",
			zap.String("url", req.URL),
			zap.Stringer("kind", fe.Kind),
			zap.String("stderr", stderr),
			zap.Error(err))
		return nil, fe
	}

	path, err := util.FindArtifact(f.cfg.ScratchDir, req.Prefix)
	if errors.Is(err, util.ErrNoArtifact) {
		return nil, ErrArtifactMissing
	}
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}
	return &Artifact{
		Path: path,
		Ext:  strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")),
		Size: info.Size(),
	}, nil
}

// ExecRunner runs name as a child process. The process is killed when ctx
// is done.
func ExecRunner(ctx context.Context, name string, args []string, onLine func(string)) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", err
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start %s: %w", name, err)
	}

	var stderrOutput strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanLines(stdout, onLine)
	}()

	go func() {
		defer wg.Done()
		scanLines(stderr, func(line string) {
			stderrOutput.WriteString(line + "\n")
			onLine(line)
		})
	}()

	wg.Wait()
	err = cmd.Wait()
	return stderrOutput.String(), err
}

// scanLines feeds r to fn line by line. A line longer than the scanner
// buffer ends scanning, and the rest of r is discarded so the child
// never blocks on a full pipe.
func scanLines(r io.Reader, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	_, _ = io.Copy(io.Discard, r)
}
