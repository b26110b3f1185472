// Command afsd runs the server daemon that exports one filesystem root
// over the network to afsmount clients.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/golang/glog"

	"github.com/EricZhang12138/Distributed-Filesystem/pkg/server"
)

func init() {
	// change glog default destination to stderr
	if glog.V(0) { // should always be true, mention glog so it defines its flags before we change them
		if err := flag.CommandLine.Set("logtostderr", "true"); nil != err {
			log.Printf("Failed changing glog default destination, err: %s", err)
		}
	}
}

var tcpAddr string

func init() {
	flag.StringVar(&tcpAddr, "tcp", "0.0.0.0:1112", "`addr` specifies the TCP address for the file service")
}

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
This is the afsd server daemon, all options:

`)
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), `
Simple usage:

 %s [ -tcp <service-addr> ] <export-root>

`, os.Args[0])
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	sharedRoot := flag.Args()[0]
	absRoot, err := filepath.Abs(sharedRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error with [%s] as root to share: %+v\n", sharedRoot, err)
		os.Exit(1)
	}

	srv, err := server.NewServer(absRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing export root [%s]: %+v\n", absRoot, err)
		os.Exit(1)
	}

	if err = srv.ListenTCP(tcpAddr); err != nil {
		fmt.Fprintf(os.Stderr, "Error serving export root [%s]=>[%s]: %+v\n", sharedRoot, absRoot, err)
		os.Exit(1)
	}
}
