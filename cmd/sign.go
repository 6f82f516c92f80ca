package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/eisenwinter/mdqd/mdq"
	"github.com/eisenwinter/mdqd/metadata"
	"github.com/eisenwinter/mdqd/signing"
	"github.com/eisenwinter/mdqd/validation"
	"github.com/spf13/cobra"
)

var signingAlg string

var signCommand = cobra.Command{
	Use:   "sign <client_id>",
	Short: "prints the signed metadata of a client",
	Long:  `Loads the metadata once and prints the application/jwt answer for the given client id, usefull to verify the signer setup`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		source := mustResolveSource()
		defer closeSource(source)
		store := metadata.NewStore()
		refresher := metadata.NewRefresher(TopLevelLogger.Named("refresher"), source, store, 0, LoadedConfig.Metadata.LoadTimeout)
		if err := refresher.Refresh(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "unable to load metadata: %v\n", err)
			os.Exit(1)
		}

		signer := mustResolveSigner()
		validator := validation.NewRequestValidator(
			[]string{validation.MediaTypeJWT},
			signingAlgorithms(signer),
			validation.SigningAlgParam,
		)
		handler := mdq.NewHandler(TopLevelLogger.Named("mdq"), store, validator, signer, refresher.Interval())

		target := "/entities/" + url.PathEscape(args[0])
		if signingAlg != "" {
			target += "?" + url.Values{validation.SigningAlgParam: {signingAlg}}.Encode()
		}
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, target, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid client id: %v\n", err)
			os.Exit(1)
		}
		req.Header.Set("Accept", validation.MediaTypeJWT)
		resp, err := handler.Query(req, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%d %s\n", mdq.StatusCode(err), mdq.Message(err))
			os.Exit(1)
		}
		fmt.Println(string(resp.Body))
	},
}

func init() {
	signCommand.Flags().StringVar(&signingAlg, "alg", "", "signing algorithm, defaults to "+signing.AlgNone)
}
