package commands

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/resrv/internal/respclient"
	"github.com/marmos91/resrv/internal/resp"
)

var (
	clientHost string
	clientPort int
)

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&clientHost, "host", "h", "127.0.0.1", "server host")
	cmd.Flags().IntVarP(&clientPort, "port", "p", 6379, "server port")
}

func dialClient() (*respclient.Client, error) {
	addr := net.JoinHostPort(clientHost, strconv.Itoa(clientPort))
	return respclient.ConnectTimeout(addr, respclient.DefaultConnectTimeout)
}

// printReply renders a decoded frame the way a simple interop CLI would:
// bulk/simple as raw text, integers as numbers, arrays one element per line.
func printReply(f resp.Frame) {
	switch f.Kind {
	case resp.KindNull:
		fmt.Println("(nil)")
	case resp.KindSimple:
		fmt.Println(f.Str)
	case resp.KindError:
		fmt.Println("(error)", f.Str)
	case resp.KindInteger:
		fmt.Println(f.Int)
	case resp.KindBulk:
		fmt.Println(string(f.Bulk))
	case resp.KindArray:
		for _, elem := range f.Elems {
			printReply(elem)
		}
	}
}

var pingCmd = &cobra.Command{
	Use:   "ping [message]",
	Short: "Ping the server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialClient()
		if err != nil {
			return err
		}
		defer c.Close()

		message := ""
		if len(args) == 1 {
			message = args[0]
		}
		reply, err := c.Ping(message)
		if err != nil {
			return err
		}
		printReply(reply)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a key's value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialClient()
		if err != nil {
			return err
		}
		defer c.Close()

		reply, err := c.Get(args[0])
		if err != nil {
			return err
		}
		printReply(reply)
		return nil
	},
}

var (
	setExSeconds int64
	setPxMillis  int64
)

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a key's value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialClient()
		if err != nil {
			return err
		}
		defer c.Close()

		var ttl time.Duration
		switch {
		case setExSeconds > 0:
			ttl = time.Duration(setExSeconds) * time.Second
		case setPxMillis > 0:
			ttl = time.Duration(setPxMillis) * time.Millisecond
		}

		reply, err := c.Set(args[0], []byte(args[1]), ttl)
		if err != nil {
			return err
		}
		printReply(reply)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{pingCmd, getCmd, setCmd} {
		addClientFlags(c)
	}
	setCmd.Flags().Int64Var(&setExSeconds, "ex", 0, "expire after this many seconds")
	setCmd.Flags().Int64Var(&setPxMillis, "px", 0, "expire after this many milliseconds")
}
