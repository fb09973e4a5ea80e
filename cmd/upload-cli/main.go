package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"media-vault/client/uploadclient"
)

func main() {
	var (
		server      = flag.String("server", "http://localhost:7290", "Uploader service base URL")
		user        = flag.String("user", "", "User id sent as X-User-Id")
		directory   = flag.String("dir", "", "Target directory (default uploads)")
		folderId    = flag.String("folder", "", "Folder id recorded with the file")
		contentType = flag.String("type", "", "Content type (guessed from the extension when empty)")
		chunkMiB    = flag.Int64("chunk", 5, "Part size in MiB")
		parallel    = flag.Int("parallel", 4, "Parts uploaded concurrently")
		retries     = flag.Int("retries", uploadclient.DefaultMaxRetries, "Retries per part")
		verbose     = flag.Bool("v", false, "Debug logging")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).Level(level).With().Timestamp().Logger()

	if flag.NArg() != 1 || *user == "" {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open file")
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to stat file")
	}

	ct := *contentType
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(path))
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	var folder *string
	if *folderId != "" {
		folder = folderId
	}

	bar := progressbar.NewOptions64(
		info.Size(),
		progressbar.OptionSetDescription(fmt.Sprintf("Uploading %s", filepath.Base(path))),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := uploadclient.New(uploadclient.Config{
		BaseURL:     *server,
		UserId:      *user,
		ChunkSize:   *chunkMiB * 1024 * 1024,
		Parallelism: *parallel,
		MaxRetries:  *retries,
		Logger:      logger,
	})

	res, err := client.Upload(ctx, uploadclient.UploadInput{
		FileName:    filepath.Base(path),
		ContentType: ct,
		Directory:   *directory,
		FolderId:    folder,
		Body:        f,
		Size:        info.Size(),
		OnProgress:  func(n int64) { _ = bar.Add64(n) },
	})
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		logger.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("fileId: %s\nkey:    %s\nurl:    %s\n", res.FileId, res.Key, res.FileUrl)
}
