package experiments

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// bucketKeys maps S3 buckets to the key pairs of the machines that
// sync to them
var bucketKeys = map[string]string{
	"hrtang0":      "rllab-us-west-1",
	"rllab-hrtang": "hrtang-us-west-1",
}

var (
	pemFile   string
	bucket    string
	keyDir    string
	execLogin bool
)

// LoginCommand prints, and optionally runs, the ssh command logging in
// to an EC2 machine
func LoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [IP]",
		Short: "Print the ssh command logging in to an EC2 machine",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ip := ""
			if len(args) > 0 {
				ip = args[0]
			}
			pem, err := keyPair(pemFile, bucket)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			argv := Login(ip, pem, keyDir)
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(argv, " "))
			if !execLogin {
				return nil
			}
			c := exec.CommandContext(cmd.Context(), argv[0], argv[1:]...)
			c.Stdin = os.Stdin
			c.Stdout = cmd.OutOrStdout()
			c.Stderr = cmd.ErrOrStderr()
			if err := c.Run(); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pemFile, "pem", "", "Key pair name, derived from the bucket if empty")
	cmd.Flags().StringVar(&bucket, "bucket", "hrtang0", "S3 bucket of the launches")
	cmd.Flags().StringVar(&keyDir, "key-dir", "private/key_pairs", "Directory of key pairs")
	cmd.Flags().BoolVar(&execLogin, "exec", false, "Run the ssh command")
	return cmd
}

// keyPair returns pem if set, and the key pair of bucket otherwise
func keyPair(pem, bucket string) (string, error) {
	if pem != "" {
		return pem, nil
	}
	key, ok := bucketKeys[bucket]
	if !ok {
		return "", fmt.Errorf("keyPair: no key pair for bucket %q", bucket)
	}
	return key, nil
}

// Login returns the ssh command logging in to the machine at ip with
// the key pair pem in dir
func Login(ip, pem, dir string) []string {
	return []string{
		"ssh",
		"ubuntu@" + ip,
		"-i", filepath.Join(dir, pem+".pem"),
		"-o", "IdentitiesOnly yes",
	}
}
