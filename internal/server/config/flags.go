package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/videotube/internal/flagx"
)

var valueFlags = []string{"-a", "-d", "-s", "-k", "-t", "-r", "-x", "-f", "-l", "-u", "-p", "-b", "-g", "-e", "-w"}

var boolFlags = []string{"-m", "-o"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-d string   PostgreSQL DSN
//	-m          use the in-memory user store
//	-s string   access token secret
//	-k string   refresh token secret
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-x int      bcrypt cost
//	-o          mark token cookies Secure
//	-f string   upload temp directory
//	-l int      max upload size, megabytes
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-w string   public base URL of stored media
//
// Duration flags are integers in minutes; -l is in megabytes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], valueFlags, boolFlags...)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.BoolVar(&config.UseMemoryStore, "m", config.UseMemoryStore, "use in-memory user store")
	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "k", config.RefreshTokenSecret, "refresh token secret")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.IntVar(&config.BcryptCost, "x", config.BcryptCost, "bcrypt cost")
	fs.BoolVar(&config.CookieSecure, "o", config.CookieSecure, "secure cookies")
	fs.StringVar(&config.UploadDir, "f", config.UploadDir, "upload temp directory")
	maxUploadSize := fs.Int64("l", config.MaxUploadSize>>20, "max upload size (in megabytes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.MediaPublicBaseURL, "w", config.MediaPublicBaseURL, "public media base URL")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.MaxUploadSize = *maxUploadSize << 20
}
