package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

var (
	searchKeywords []string
	searchLocation string
	searchWorkType string
	searchMax      int
	searchMin      int

	contactsCompany  string
	contactsWebsite  string
	contactsLinkedIn string
	contactsTitle    string
	contactsMax      int
	contactsMin      int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search for job postings",
	Example: `  jobsearch-cli search --keywords nurse --location "Toronto, ON"
  jobsearch-cli search --keywords "data engineer" --work-type remote --max 30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := model.NewJobQuery(model.JobQuery{
			Keywords:      searchKeywords,
			Location:      searchLocation,
			WorkType:      model.WorkType(searchWorkType),
			MaxResults:    searchMax,
			MinAcceptable: searchMin,
		})
		return runQuery(cmd, q)
	},
}

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Search for people at a company",
	Example: `  jobsearch-cli contacts --company "Acme Health" --website acmehealth.com --title recruiter`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := model.NewContactQuery(model.ContactQuery{
			CompanyName:        contactsCompany,
			CompanyWebsite:     contactsWebsite,
			LinkedInCompanyURL: contactsLinkedIn,
			TargetTitleHint:    contactsTitle,
			MaxResults:         contactsMax,
			MinAcceptable:      contactsMin,
		})
		return runQuery(cmd, q)
	},
}

func runQuery(cmd *cobra.Command, q model.Query) error {
	// Reject bad input before touching the store.
	if err := q.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	env, err := initApp(ctx, "search")
	if err != nil {
		return err
	}
	defer env.Close()

	resp, err := env.Orchestrator.Aggregate(ctx, q)
	if err != nil {
		return eris.Wrap(err, "aggregate")
	}

	zap.L().Info("search complete",
		zap.String("kind", string(q.Kind)),
		zap.String("source", string(resp.Source)),
		zap.Bool("cached", resp.Cached),
		zap.Int("records", len(resp.Records)),
	)
	return writeResponse(os.Stdout, resp)
}

func writeResponse(w io.Writer, resp *model.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func init() {
	searchCmd.Flags().StringSliceVar(&searchKeywords, "keywords", nil, "job title keywords (required, comma separated or repeated)")
	searchCmd.Flags().StringVar(&searchLocation, "location", "", "city, region, or country")
	searchCmd.Flags().StringVar(&searchWorkType, "work-type", "", "remote, hybrid, onsite, or any")
	searchCmd.Flags().IntVar(&searchMax, "max", 0, "maximum results (default from config)")
	searchCmd.Flags().IntVar(&searchMin, "min", 0, "records needed before stopping early (default from config)")
	_ = searchCmd.MarkFlagRequired("keywords")
	rootCmd.AddCommand(searchCmd)

	contactsCmd.Flags().StringVar(&contactsCompany, "company", "", "company name (required)")
	contactsCmd.Flags().StringVar(&contactsWebsite, "website", "", "company website")
	contactsCmd.Flags().StringVar(&contactsLinkedIn, "linkedin", "", "LinkedIn company page URL")
	contactsCmd.Flags().StringVar(&contactsTitle, "title", "", "preferred contact title, e.g. recruiter")
	contactsCmd.Flags().IntVar(&contactsMax, "max", 0, "maximum results (default from config)")
	contactsCmd.Flags().IntVar(&contactsMin, "min", 0, "records needed before stopping early (default from config)")
	_ = contactsCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(contactsCmd)
}
