package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Toskysun/sdu-seat/internal/domain/booking"
)

func newSeatsCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "seats",
		Short: "List libraries, rooms and seat availability for the target date",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			date := a.cfg.TargetDate(time.Now())

			libs, err := a.client.Libraries(ctx, date)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			defer w.Flush()

			building, areaName, _ := strings.Cut(a.cfg.Area, "-")
			for _, lib := range sortedAreas(libs) {
				fmt.Fprintf(w, "%s\t%d/%d free\n", lib.Name, lib.FreeSeats, lib.TotalSeats)
				if !all && lib.Name != building {
					continue
				}
				areas, err := a.client.SubAreas(ctx, lib, date)
				if err != nil {
					return err
				}
				for _, area := range sortedAreas(areas) {
					fmt.Fprintf(w, "  %s\t%d/%d free\n", area.Name, area.FreeSeats, area.TotalSeats)
					if !all && areaName != "" && area.Name != areaName {
						continue
					}
					rooms, err := a.client.SubAreas(ctx, area, date)
					if err != nil {
						return err
					}
					for _, room := range sortedAreas(rooms) {
						fmt.Fprintf(w, "    %s\t%d/%d free\n", room.Name, room.FreeSeats, room.TotalSeats)
						for _, p := range room.Periods {
							seats, err := a.client.Seats(ctx, room, p, date)
							if err != nil {
								return err
							}
							free := 0
							for _, s := range seats {
								if s.Status.Bookable() {
									free++
								}
							}
							fmt.Fprintf(w, "      %s\t%d/%d bookable\n", p.Label(), free, len(seats))
						}
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "walk every library instead of only the configured area")
	return cmd
}

func sortedAreas(m map[string]booking.Area) []booking.Area {
	out := make([]booking.Area, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
