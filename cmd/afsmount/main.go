// Command afsmount runs the client daemon that maintains a cache directory
// in sync with a remote afsd server. The actual translation of kernel
// system calls into Client operations is the job of an external
// file-system bridge (spec §6); this daemon establishes the connection and
// keeps the resulting *client.Client, with its notification subscriber,
// alive until SIGINT or SIGTERM. It does not attach a bridge itself.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/golang/glog"

	"github.com/EricZhang12138/Distributed-Filesystem/pkg/client"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/rpc"
)

func init() {
	if glog.V(0) {
		if err := flag.CommandLine.Set("logtostderr", "true"); nil != err {
			log.Printf("Failed changing glog default destination, err: %s", err)
		}
	}
}

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
This is the afsmount client daemon, all options:

`)
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), `
Simple usage:

 %s [ <server-addr> ] <cache-root>

The server address may also be given via the AFS_SERVER environment
variable, in which case the single positional argument is the cache root.

`, os.Args[0])
	}
	flag.Parse()

	var servAddr, cacheRoot string
	switch flag.NArg() {
	case 2:
		servAddr, cacheRoot = flag.Args()[0], flag.Args()[1]
	case 1:
		servAddr, cacheRoot = os.Getenv("AFS_SERVER"), flag.Args()[0]
	default:
		flag.Usage()
		os.Exit(1)
	}

	if len(servAddr) <= 0 {
		fmt.Fprintln(os.Stderr, "No server address given, and AFS_SERVER is not set.")
		flag.Usage()
		os.Exit(1)
	}

	absCacheRoot, err := filepath.Abs(cacheRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving cache root [%s]: %+v\n", cacheRoot, err)
		os.Exit(1)
	}

	c, err := client.NewClient(rpc.ConnTCP(servAddr), absCacheRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to afsd at [%s]: %+v\n", servAddr, err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "afsmount: connected to %s, caching under %s\n", servAddr, absCacheRoot)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	c.Close()
	os.Exit(0)
}
