package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/civic-kit/report-service/internal/domain"
	"github.com/civic-kit/report-service/internal/firewall"
)

const keySensitiveCategory = "sensitive_category"

// tableExport is the document written by `policyctl table`.
type tableExport struct {
	SensitiveCategory string              `yaml:"sensitive_category" json:"sensitive_category"`
	Rules             []firewall.RuleSpec `yaml:"rules" json:"rules"`
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("FIREWALL")
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "policyctl",
		Short:         "Inspect the sensitive-record firewall",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("sensitive-category", string(firewall.DefaultSensitiveCategory),
		"protected category (env FIREWALL_SENSITIVE_CATEGORY)")
	_ = v.BindPFlag(keySensitiveCategory, root.PersistentFlags().Lookup("sensitive-category"))

	classifier := func() (firewall.Classifier, error) {
		return firewall.NewClassifier(v.GetString(keySensitiveCategory))
	}

	root.AddCommand(
		newTableCmd(classifier),
		newRLSCmd(classifier),
		newDecideCmd(classifier),
		newCheckTrackingCmd(),
	)
	return root
}

func newTableCmd(classifier func() (firewall.Classifier, error)) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Print the decision table in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := classifier()
			if err != nil {
				return err
			}
			doc := tableExport{SensitiveCategory: string(c.Marker()), Rules: firewall.Rules()}
			out := cmd.OutOrStdout()
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(doc); err != nil {
					return err
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			default:
				return fmt.Errorf("unknown format %q (want yaml or json)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format: yaml or json")
	return cmd
}

func newRLSCmd(classifier func() (firewall.Classifier, error)) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "rls",
		Short: "Render the Postgres row-level-security DDL for the reports table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := classifier()
			if err != nil {
				return err
			}
			ddl := firewall.RowLevelSecuritySQL(c)
			if output == "" || output == "-" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), ddl)
				return err
			}
			return os.WriteFile(output, []byte(ddl), 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newDecideCmd(classifier func() (firewall.Classifier, error)) *cobra.Command {
	var (
		actor    firewall.Actor
		role     string
		owner    string
		tenant   string
		ward     string
		category string
	)
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Evaluate the access policy for one caller and one record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := classifier()
			if err != nil {
				return err
			}
			if !domain.Category(category).Valid() {
				return fmt.Errorf("unknown category %q", category)
			}
			actor.Role = domain.Role(role)
			subject := firewall.Subject{
				OwnerID:     owner,
				TenantID:    tenant,
				IsSensitive: c.Classify(domain.Category(category)),
			}
			if ward != "" {
				subject.Ward = &ward
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), firewall.Decide(actor, subject))
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&actor.ID, "actor-id", "", "caller account id")
	flags.StringVar(&role, "actor-role", string(domain.RoleAnonymous), "caller role")
	flags.StringVar(&actor.TenantID, "actor-tenant", "", "caller tenant")
	flags.StringSliceVar(&actor.Wards, "actor-wards", nil, "caller wards (ward councillors)")
	flags.StringVar(&owner, "owner", "", "record owner id")
	flags.StringVar(&tenant, "tenant", "", "record tenant")
	flags.StringVar(&ward, "ward", "", "record ward")
	flags.StringVar(&category, "category", string(domain.CategoryOther), "record category")
	return cmd
}

func newCheckTrackingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-tracking NUMBER...",
		Short: "Validate tracking number format",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var invalid []string
			for _, arg := range args {
				verdict := "valid"
				if !domain.ValidTrackingNumber(arg) {
					verdict = "invalid"
					invalid = append(invalid, arg)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", arg, verdict)
			}
			if len(invalid) > 0 {
				return fmt.Errorf("invalid tracking numbers: %s", strings.Join(invalid, ", "))
			}
			return nil
		},
	}
}
