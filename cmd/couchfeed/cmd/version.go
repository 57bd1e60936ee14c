// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/go-kivik/cloudant"
	"github.com/go-kivik/cloudant/cmd/couchfeed/errors"
)

type version struct {
	*root
}

func versionCmd(r *root) *cobra.Command {
	c := &version{
		root: r,
	}
	return &cobra.Command{
		Use:     "version [dsn]",
		Aliases: []string{"ver"},
		Short:   "Print client and server version information",
		Long:    "Print the client version and, when a server DSN is given, the server's version",
		Args:    cobra.MaximumNArgs(1),
		RunE:    c.RunE,
	}
}

func (c *version) RunE(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "couchfeed version %s %s %s/%s\n", cloudant.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH); err != nil {
		return errors.WithCode(err, errors.ErrIO)
	}
	if len(args) == 0 {
		return nil
	}
	if !isDSN(args[0]) {
		return errors.Codef(errors.ErrUsage, "invalid server DSN %q", args[0])
	}
	cx, err := c.conf.CurrentCx()
	if err != nil {
		return err
	}
	client, err := c.client(cx)
	if err != nil {
		return err
	}
	defer client.Close() // nolint:errcheck

	ctx := cmd.Context()
	var ver *cloudant.ServerVersion
	err = c.retry(ctx, func() error {
		var err error
		ver, err = client.Version(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "server version %s (%s)\n", ver.Version, ver.Vendor); err != nil {
		return errors.WithCode(err, errors.ErrIO)
	}
	return nil
}
