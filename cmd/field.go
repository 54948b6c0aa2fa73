package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tudl/bugit/internal/envelope"
	"github.com/tudl/bugit/internal/keymaterial"
	"github.com/tudl/bugit/pkg/bootstrap"
)

const (
	fieldTypeString = "string"
	fieldTypeFloat  = "float"
	fieldTypeInt    = "int"
	fieldTypeBool   = "bool"
	fieldTypeDate   = "date"
)

var fieldType string

var fieldCmd = &cobra.Command{
	Use:   "field",
	Short: "encrypt or decrypt a single field value with the master key",
	Long: `Encrypt or decrypt one field value with the configured master key, exactly as
the service does. For support and debugging; decrypted values are printed to
stdout and never logged.`,
}

var fieldEncryptCmd = &cobra.Command{
	Use:   "encrypt <value>",
	Short: "encrypt a value and print the envelope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := fieldsFromConfig(cmd.Context())
		if err != nil {
			return err
		}

		return encryptField(cmd.OutOrStdout(), fields, fieldType, args[0])
	},
}

var fieldDecryptCmd = &cobra.Command{
	Use:   "decrypt <envelope>",
	Short: "decrypt an envelope and print the value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := fieldsFromConfig(cmd.Context())
		if err != nil {
			return err
		}

		return decryptField(cmd.OutOrStdout(), fields, fieldType, args[0])
	},
}

func init() {
	rootCmd.AddCommand(fieldCmd)
	fieldCmd.AddCommand(fieldEncryptCmd)
	fieldCmd.AddCommand(fieldDecryptCmd)
	fieldCmd.PersistentFlags().StringVar(
		&fieldType,
		"type",
		fieldTypeString,
		fmt.Sprintf("Type of the value: %s, %s, %s, %s or %s (YYYY-MM-DD).", fieldTypeString, fieldTypeFloat, fieldTypeInt, fieldTypeBool, fieldTypeDate),
	)
}

// fieldsFromConfig builds field helpers from the master key alone; the RSA identity is not needed here.
func fieldsFromConfig(ctx context.Context) (envelope.Fields, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := bootstrap.LoadConfig(bootstrap.ConfigFilePath)
	if err != nil {
		return envelope.Fields{}, err
	}

	secrets, err := bootstrap.SecretSourceFor(cfg.MasterKey)
	if err != nil {
		return envelope.Fields{}, err
	}

	key, err := keymaterial.LoadSymmetricKey(ctx, secrets, cfg.MasterKey.Name)
	if err != nil {
		return envelope.Fields{}, err
	}
	defer clear(key)

	c, err := envelope.NewCipherFromKey(key)
	if err != nil {
		return envelope.Fields{}, err
	}

	return envelope.NewFields(c), nil
}

func encryptField(w io.Writer, fields envelope.Fields, typ, value string) error {
	var (
		out string
		err error
	)

	switch typ {
	case fieldTypeString:
		out, err = fields.EncryptString(value)
	case fieldTypeFloat:
		v, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return fmt.Errorf("value %q is not a float", value)
		}
		out, err = fields.EncryptFloat(v)
	case fieldTypeInt:
		v, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil {
			return fmt.Errorf("value %q is not an integer", value)
		}
		out, err = fields.EncryptInt(v)
	case fieldTypeBool:
		v, perr := strconv.ParseBool(value)
		if perr != nil {
			return fmt.Errorf("value %q is not a boolean", value)
		}
		out, err = fields.EncryptBool(v)
	case fieldTypeDate:
		v, perr := time.Parse(envelope.DateLayout, value)
		if perr != nil {
			return fmt.Errorf("value %q is not a %s date", value, envelope.DateLayout)
		}
		out, err = fields.EncryptDate(v)
	default:
		return fmt.Errorf("unknown field type %q", typ)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, out)
	return err
}

func decryptField(w io.Writer, fields envelope.Fields, typ, value string) error {
	var (
		out string
		err error
	)

	switch typ {
	case fieldTypeString:
		out, err = fields.DecryptString(value)
	case fieldTypeFloat:
		var v float64
		v, err = fields.DecryptFloat(value)
		out = strconv.FormatFloat(v, 'f', -1, 64)
	case fieldTypeInt:
		var v int64
		v, err = fields.DecryptInt(value)
		out = strconv.FormatInt(v, 10)
	case fieldTypeBool:
		var v bool
		v, err = fields.DecryptBool(value)
		out = strconv.FormatBool(v)
	case fieldTypeDate:
		var v time.Time
		v, err = fields.DecryptDate(value)
		out = v.Format(envelope.DateLayout)
	default:
		return fmt.Errorf("unknown field type %q", typ)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, out)
	return err
}
