// Command healthcheck probes the site's /healthz endpoint and exits non-zero
// when it is unreachable or unhealthy, for use as a container HEALTHCHECK.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	base := flag.String("addr", "http://localhost:8080", "site base URL")
	timeout := flag.Duration("timeout", 3*time.Second, "probe timeout")
	flag.Parse()

	client := &fasthttp.Client{
		ReadTimeout:  *timeout,
		WriteTimeout: *timeout,
	}
	status, body, err := client.GetTimeout(nil, *base+"/healthz", *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
		os.Exit(1)
	}
	if status != fasthttp.StatusOK {
		fmt.Fprintf(os.Stderr, "healthcheck: status %d: %s\n", status, body)
		os.Exit(1)
	}
	fmt.Println(string(body))
}
