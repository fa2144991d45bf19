package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/credverse/credverse-go/credential/common/canonical"
	"github.com/credverse/credverse-go/credential/common/crypto"
	"github.com/credverse/credverse-go/credential/common/resolver"
	"github.com/credverse/credverse-go/credential/vc"
	"github.com/credverse/credverse-go/credential/verifier"
	"github.com/credverse/credverse-go/issuer"
	"github.com/credverse/credverse-go/registry"
	regfile "github.com/credverse/credverse-go/registry/file"
	storfile "github.com/credverse/credverse-go/storage/file"
)

var rootCmd = &cobra.Command{
	Use:   "credverse",
	Short: "CredVerse credential tooling",
	Long: `CredVerse issues, anchors and verifies tamper-evident academic credentials.
A credential is a W3C-shaped JSON document. Its canonical form is hashed,
the hash is signed by the issuer and anchored in a registry; verification
re-derives the hash and checks signature, anchoring and revocation state.
State lives in the workspace: a file-backed registry plus a content store
for the portable documents.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CREDVERSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("issuer-did", "", "issuer DID acting as the caller identity")
	rootCmd.PersistentFlags().String("key", "", "issuer private key hex (or CREDVERSE_KEY)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("issuer-did", rootCmd.PersistentFlags().Lookup("issuer-did"))
	_ = viper.BindPFlag("key", rootCmd.PersistentFlags().Lookup("key"))
}

func registerCommands() {
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(authorizeCmd())
	rootCmd.AddCommand(issueCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(lookupCmd())
	rootCmd.AddCommand(revokeCmd())
	rootCmd.AddCommand(pointerCmd())
}

func keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a secp256k1 issuer keypair",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := crypto.GenerateKeyPair()
			if err != nil {
				return err
			}
			return printJSONOrTable(keys)
		},
	}
	return cmd
}

func authorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorize <did>",
		Short: "Grant anchor rights to an issuer in the workspace registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			if err := reg.Authorize(args[0]); err != nil {
				return err
			}
			fmt.Printf("authorized %s\n", args[0])
			return nil
		},
	}
	return cmd
}

func issueCmd() *cobra.Command {
	var batchPath, outDir string
	var concurrency int
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue, sign and anchor credentials from a YAML batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			issuerDID := viper.GetString("issuer-did")
			key := viper.GetString("key")
			if issuerDID == "" || key == "" {
				return fmt.Errorf("--issuer-did and --key are required")
			}

			batch, err := loadBatch(batchPath)
			if err != nil {
				return err
			}

			manager, err := newManager(issuerDID, key)
			if err != nil {
				return err
			}

			results, err := manager.BulkIssue(cmd.Context(), batch, concurrency)
			if err != nil {
				return err
			}

			issued := 0
			rows := make([]table.Row, 0, len(results))
			for _, result := range results {
				if result.Err != nil {
					rows = append(rows, table.Row{result.Index, "", "failed", result.Err.Error()})
					continue
				}
				issued++
				if outDir != "" {
					if err := writeCredential(outDir, result.Credential); err != nil {
						return err
					}
				}
				rows = append(rows, table.Row{
					result.Index,
					result.Credential.CredentialSubject.StudentID,
					"anchored",
					result.Receipt.Digest.Hex(),
				})
			}

			if viper.GetBool("json") {
				return printJSON(results)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"#", "Student", "Status", "Detail"})
			tw.AppendRows(rows)
			tw.Render()
			fmt.Printf("%d/%d issued\n", issued, len(results))
			return nil
		},
	}
	cmd.Flags().StringVar(&batchPath, "file", "", "YAML batch of subjects")
	cmd.Flags().StringVar(&outDir, "out", "", "directory to write signed credential documents")
	cmd.Flags().IntVar(&concurrency, "concurrency", issuer.DefaultConcurrency, "parallel anchor operations")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func verifyCmd() *cobra.Command {
	var issuerKey, digestHex string
	cmd := &cobra.Command{
		Use:   "verify [credential.json ...]",
		Short: "Verify credential documents or a bare digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			orchestrator, err := newOrchestrator(issuerKey)
			if err != nil {
				return err
			}

			if digestHex != "" {
				digest, err := canonical.ParseDigest(digestHex)
				if err != nil {
					return err
				}
				verdict := orchestrator.VerifyDigest(cmd.Context(), digest)
				return printVerdicts([]verifier.BatchResult{{Verdict: verdict}})
			}

			if len(args) == 0 {
				return fmt.Errorf("a credential file or --digest is required")
			}
			docs := make([][]byte, len(args))
			for i, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				docs[i] = data
			}
			results, err := orchestrator.VerifyDocuments(cmd.Context(), docs, 0)
			if err != nil {
				return err
			}
			return printVerdicts(results)
		},
	}
	cmd.Flags().StringVar(&issuerKey, "issuer-key", "", "issuer public key hex for signature checks (skipped if absent)")
	cmd.Flags().StringVar(&digestHex, "digest", "", "verify an anchored digest instead of a document")
	return cmd
}

func lookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <digest>",
		Short: "Show the registry entry for a digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, err := canonical.ParseDigest(args[0])
			if err != nil {
				return err
			}
			client, err := newClient("")
			if err != nil {
				return err
			}
			entry, err := client.Lookup(cmd.Context(), digest)
			if err != nil {
				return err
			}
			return printJSONOrTable(entry)
		},
	}
	return cmd
}

func revokeCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "revoke <credential-id>",
		Short: "Revoke an anchored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one credential id is required")
			}
			issuerDID := viper.GetString("issuer-did")
			if issuerDID == "" {
				return fmt.Errorf("--issuer-did is required")
			}
			client, err := newClient(issuerDID)
			if err != nil {
				return err
			}
			receipt, err := client.Revoke(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			return printJSONOrTable(receipt)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "advisory revocation reason")
	return cmd
}

func pointerCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "pointer <credential-id>",
		Short: "Print the public verification URL for a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(vc.VerificationPointer(baseURL, args[0]))
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "https://credverse.in", "verification portal base URL")
	return cmd
}

// --- helpers ---

func workspaceDir() string {
	return filepath.Join(viper.GetString("workspace"), ".credverse")
}

func openRegistry() (*regfile.Registry, error) {
	return regfile.Open(filepath.Join(workspaceDir(), "registry.json"))
}

func newClient(identity string) (*registry.Client, error) {
	reg, err := openRegistry()
	if err != nil {
		return nil, err
	}
	return registry.NewClient(reg, identity)
}

func newManager(issuerDID, key string) (*issuer.Manager, error) {
	client, err := newClient(issuerDID)
	if err != nil {
		return nil, err
	}
	store, err := storfile.Open(filepath.Join(workspaceDir(), "blobs"))
	if err != nil {
		return nil, err
	}
	return issuer.NewManager(issuerDID, key, client, issuer.WithStore(store))
}

// newOrchestrator builds a verifier. When an issuer public key is given the
// document's issuer DID is mapped to it for signature checks; a resolver
// service URL works too via CREDVERSE_RESOLVER_URL.
func newOrchestrator(issuerKey string) (*verifier.Orchestrator, error) {
	client, err := newClient("")
	if err != nil {
		return nil, err
	}

	var res resolver.Resolver
	if resolverURL := viper.GetString("resolver-url"); resolverURL != "" {
		res = resolver.NewHTTP(resolverURL)
	} else if issuerKey != "" {
		static := resolver.NewStatic()
		issuerDID := viper.GetString("issuer-did")
		if issuerDID == "" {
			return nil, fmt.Errorf("--issuer-did is required with --issuer-key")
		}
		if err := static.Register(issuerDID, issuerKey); err != nil {
			return nil, err
		}
		res = static
	}
	return verifier.New(client, res)
}

// batchFile is the YAML shape of an issuance batch.
type batchFile struct {
	TemplateID string                   `yaml:"templateId"`
	Metadata   batchMetadata            `yaml:"metadata"`
	Subjects   []map[string]interface{} `yaml:"subjects"`
}

type batchMetadata struct {
	Version  string   `yaml:"version"`
	Category string   `yaml:"category"`
	Level    string   `yaml:"level"`
	Language string   `yaml:"language"`
	Region   string   `yaml:"region"`
	Tags     []string `yaml:"tags"`
}

func loadBatch(path string) ([]issuer.BulkRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var batch batchFile
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("invalid batch file: %w", err)
	}
	if batch.TemplateID == "" {
		return nil, fmt.Errorf("batch file is missing templateId")
	}
	if len(batch.Subjects) == 0 {
		return nil, fmt.Errorf("batch file has no subjects")
	}

	meta := vc.Metadata{
		Version:  batch.Metadata.Version,
		Category: batch.Metadata.Category,
		Level:    batch.Metadata.Level,
		Language: batch.Metadata.Language,
		Region:   batch.Metadata.Region,
		Tags:     batch.Metadata.Tags,
	}

	requests := make([]issuer.BulkRequest, 0, len(batch.Subjects))
	for _, raw := range batch.Subjects {
		subject, err := subjectFromMap(raw)
		if err != nil {
			return nil, err
		}
		requests = append(requests, issuer.BulkRequest{
			Subject:    subject,
			TemplateID: batch.TemplateID,
			Metadata:   meta,
		})
	}
	return requests, nil
}

// subjectFromMap round-trips a YAML subject through JSON so known and
// extension fields split the same way they do in a portable document.
func subjectFromMap(raw map[string]interface{}) (vc.Subject, error) {
	var subject vc.Subject
	data, err := json.Marshal(raw)
	if err != nil {
		return subject, fmt.Errorf("invalid subject: %w", err)
	}
	if err := json.Unmarshal(data, &subject); err != nil {
		return subject, err
	}
	return subject, nil
}

func writeCredential(dir string, cred *vc.Credential) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}
	name := strings.NewReplacer(":", "_", "/", "_").Replace(cred.ID) + ".json"
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

func printVerdicts(results []verifier.BatchResult) error {
	if viper.GetBool("json") {
		return printJSON(results)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"#", "Credential", "Valid", "Reason", "Issuer", "Anchored"})
	for _, result := range results {
		anchored := ""
		if !result.Verdict.AnchoredAt.IsZero() {
			anchored = result.Verdict.AnchoredAt.Format("2006-01-02 15:04:05")
		}
		tw.AppendRow(table.Row{
			result.Index,
			result.CredentialID,
			result.Verdict.Valid,
			string(result.Verdict.Reason),
			result.Verdict.Issuer,
			anchored,
		})
	}
	tw.Render()
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
