package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors"
	"github.com/merchantops/merchantops/internal/connectors/credentials"
	"github.com/merchantops/merchantops/internal/connectors/registry"
)

// exitInvalidCredentials is returned by validate-auth when the payload is rejected.
const exitInvalidCredentials = 2

var connectorsCmd = &cobra.Command{
	Use:   "connectors",
	Short: "Inspect the supported connectors.",
}

var connectorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every connector with the credential variants it accepts.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registry.Default()
		if err != nil {
			return err
		}
		return writeConnectorTable(cmd.OutOrStdout(), reg)
	},
}

var (
	validateAuthConnector string
	validateAuthFile      string
	validateAuthMetadata  string
)

var connectorsValidateAuthCmd = &cobra.Command{
	Use:   "validate-auth",
	Short: "Check connector_account_details against a connector's rules.",
	Long: "Reads the credential JSON from --file (use - for stdin). Without --file the\n" +
		"secrets are prompted for when stdin is a terminal.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(validateAuthConnector) == "" {
			return errors.New("--connector is required")
		}
		connector, err := connectors.Parse(validateAuthConnector)
		if err != nil {
			return err
		}
		reg, err := registry.Default()
		if err != nil {
			return err
		}
		rule, _ := reg.Get(connector)

		raw, err := readAuthPayload(cmd, validateAuthFile, rule.AuthTypes)
		if err != nil {
			return err
		}
		auth, err := validateAuth(reg, connector, raw, json.RawMessage(validateAuthMetadata))
		if err != nil {
			return &exitError{code: exitInvalidCredentials, err: fmt.Errorf("%s: %s", connector, describeError(err))}
		}
		cmd.Printf("%s accepts %s\n", connector, auth.Type)
		cmd.Println(string(auth.MaskedJSON()))
		return nil
	},
}

func init() {
	connectorsValidateAuthCmd.Flags().StringVar(&validateAuthConnector, "connector", "", "connector name, e.g. stripe")
	connectorsValidateAuthCmd.Flags().StringVar(&validateAuthFile, "file", "", "credential JSON file, or - for stdin")
	connectorsValidateAuthCmd.Flags().StringVar(&validateAuthMetadata, "metadata", "", "connector metadata JSON")
	connectorsCmd.AddCommand(connectorsListCmd, connectorsValidateAuthCmd)
}

func writeConnectorTable(w io.Writer, reg *registry.ConnectorRegistry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONNECTOR\tROUTABLE\tAUTH TYPES")
	for _, c := range reg.All() {
		rule, _ := reg.Get(c)
		types := make([]string, 0, len(rule.AuthTypes))
		for _, t := range rule.AuthTypes {
			types = append(types, string(t))
		}
		_, routable := connectors.ParseRoutable(c)
		fmt.Fprintf(tw, "%s\t%t\t%s\n", c, routable, strings.Join(types, ","))
	}
	return tw.Flush()
}

func validateAuth(reg *registry.ConnectorRegistry, connector connectors.Connector, raw, meta json.RawMessage) (credentials.AuthPayload, error) {
	auth, err := credentials.Parse(raw)
	if err != nil {
		return credentials.AuthPayload{}, err
	}
	if err := reg.Validate(connector, auth, meta); err != nil {
		return credentials.AuthPayload{}, err
	}
	return auth, nil
}

func describeError(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}

func readAuthPayload(cmd *cobra.Command, path string, accepted []credentials.AuthType) (json.RawMessage, error) {
	switch path {
	case "-":
		return io.ReadAll(cmd.InOrStdin())
	case "":
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return io.ReadAll(cmd.InOrStdin())
		}
		return promptAuthPayload(cmd, accepted)
	default:
		return os.ReadFile(path)
	}
}

// authFields lists the wire fields of each credential variant that can be
// entered at a prompt.
var authFields = map[credentials.AuthType][]string{
	credentials.TemporaryAuth:   nil,
	credentials.NoKey:           nil,
	credentials.HeaderKey:       {"api_key"},
	credentials.BodyKey:         {"api_key", "key1"},
	credentials.SignatureKey:    {"api_key", "key1", "api_secret"},
	credentials.MultiAuthKey:    {"api_key", "key1", "api_secret", "key2"},
	credentials.CertificateAuth: {"certificate", "private_key"},
}

func promptAuthPayload(cmd *cobra.Command, accepted []credentials.AuthType) (json.RawMessage, error) {
	authType := ""
	if len(accepted) == 1 {
		authType = string(accepted[0])
	} else {
		names := make([]string, 0, len(accepted))
		for _, t := range accepted {
			names = append(names, string(t))
		}
		cmd.Printf("auth_type (%s): ", strings.Join(names, ", "))
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		authType = strings.TrimSpace(line)
	}

	fields, ok := authFields[credentials.AuthType(authType)]
	if !ok {
		return nil, fmt.Errorf("auth_type %q cannot be entered interactively; use --file", authType)
	}
	payload := map[string]string{"auth_type": authType}
	for _, field := range fields {
		cmd.Printf("%s: ", field)
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		cmd.Println()
		if err != nil {
			return nil, err
		}
		payload[field] = string(secret)
	}
	return json.Marshal(payload)
}
