// Package main writes a development CA and a server certificate signed by
// it, for serving the API over HTTPS with -tls-cert and -tls-key.
package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/atinyakov/LittleHelper/internal/certgen"
)

type options struct {
	Dir      string        `help:"Output directory." default:"certs" type:"path"`
	Hosts    []string      `help:"Server DNS names and IPs." default:"localhost,127.0.0.1"`
	Reuse    bool          `help:"Sign with an existing <dir>/ca.crt and ca.key instead of creating a CA."`
	Validity time.Duration `help:"Server certificate validity." default:"8760h"`
}

func main() {
	var opts options
	ctx := kong.Parse(&opts, kong.Name("certgen"), kong.Description("Generate development TLS certificates."))
	ctx.FatalIfErrorf(generate(opts))
	fmt.Printf("Certificates generated into %s\n", opts.Dir)
}

func generate(opts options) error {
	var (
		ca  *certgen.Authority
		err error
	)
	if opts.Reuse {
		ca, err = certgen.LoadAuthority(filepath.Join(opts.Dir, "ca.crt"), filepath.Join(opts.Dir, "ca.key"))
		if err != nil {
			return err
		}
	} else {
		if ca, err = certgen.NewAuthority("LittleHelper Dev CA", certgen.CAValidity); err != nil {
			return err
		}
		caCert, caKey, err := ca.PEM()
		if err != nil {
			return err
		}
		if err := certgen.WritePair(opts.Dir, "ca", caCert, caKey); err != nil {
			return err
		}
	}

	certPEM, keyPEM, err := ca.IssueServer(opts.Hosts, opts.Validity)
	if err != nil {
		return err
	}
	return certgen.WritePair(opts.Dir, "server", certPEM, keyPEM)
}
