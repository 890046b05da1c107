package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pgoslatara/misstea/internal/app"
	"github.com/pgoslatara/misstea/internal/server"
)

func newServeCmd(f *globalFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the extraction pipeline over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, f)
			if err != nil {
				return err
			}
			defer closeApp(a)
			addr := a.Config().ListenAddr
			if cmd.Flags().Changed("listen") {
				addr = listen
			}
			if !a.Config().DisableLLM {
				a.CheckLLM(cmd.Context())
			}
			e := server.New(server.Deps{
				Extractor: a,
				Tools:     a.Tools(),
				Gatherer:  a.Gatherer(),
				Version:   app.BuildVersion,
			})
			log.Info().Str("addr", addr).Strs("strategies", a.Pipeline().Strategies()).Msg("serving")
			return server.Run(cmd.Context(), addr, e)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on (default from config, :8080)")
	return cmd
}
