package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gigline/internal/config"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/repo"
	"gigline/internal/server"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func accountCmd() *cobra.Command {
	acc := &cobra.Command{Use: "account", Short: "Manage accounts"}
	acc.AddCommand(accountCreateCmd())
	acc.AddCommand(accountListCmd())
	acc.AddCommand(accountTokenCmd())
	return acc
}

func accountCreateCmd() *cobra.Command {
	var opts engine.AccountCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an employer, freelancer or admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = actor()
				a, err := e.CreateAccount(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "account id")
	cmd.Flags().StringVar(&opts.Role, "role", "", "employer, freelancer or admin")
	cmd.Flags().StringVar(&opts.DisplayName, "name", "", "display name")
	cmd.Flags().BoolVar(&opts.Premium, "premium", false, "premium support")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func accountListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListAccounts(ctx, role)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Role", "Name", "Premium", "Created")
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.Role, a.DisplayName, a.Premium, a.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role filter")
	return cmd
}

func accountTokenCmd() *cobra.Command {
	var id string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for an account (uses GIGLINE_JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.LoadServerEnv()
			if err != nil {
				return err
			}
			if env.JWTSecret == "" {
				return fmt.Errorf("GIGLINE_JWT_SECRET is required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.GetAccount(ctx, id); err != nil {
					return fmt.Errorf("account %s: %w", id, err)
				}
				token, err := server.SignToken(env.JWTSecret, id, ttl)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"actor_id": id, "token": token, "expires_in": ttl.String()})
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "account id")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func walletCmd() *cobra.Command {
	w := &cobra.Command{Use: "wallet", Short: "Show or fund wallets"}
	w.AddCommand(walletShowCmd())
	w.AddCommand(walletDepositCmd())
	return w
}

func walletShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <account-id>",
		Short: "Show a wallet balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.Wallet(ctx, args[0], actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
}

func walletDepositCmd() *cobra.Command {
	var amount int64
	var note string
	cmd := &cobra.Command{
		Use:   "deposit <account-id>",
		Short: "Add credits to a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.Deposit(ctx, args[0], amount, note, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().Int64Var(&amount, "amount", 0, "credits to add")
	cmd.Flags().StringVar(&note, "note", "", "ledger note")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func contractCmd() *cobra.Command {
	c := &cobra.Command{Use: "contract", Short: "Manage contracts"}
	c.AddCommand(contractCreateCmd())
	c.AddCommand(contractListCmd())
	c.AddCommand(contractShowCmd())
	c.AddCommand(contractGateCmd())
	c.AddCommand(contractCancelCmd())
	c.AddCommand(contractResolveCancelCmd())
	c.AddCommand(contractCompleteCmd())
	return c
}

func contractCreateCmd() *cobra.Command {
	var opts engine.ContractCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a contract between an employer and a freelancer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = actor()
				c, err := e.CreateContract(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().Int64Var(&opts.JobID, "job", 0, "job id")
	cmd.Flags().StringVar(&opts.EmployerID, "employer", "", "employer account id")
	cmd.Flags().StringVar(&opts.FreelancerID, "freelancer", "", "freelancer account id")
	cmd.Flags().Int64Var(&opts.HourlyRate, "rate", 0, "hourly rate in credits")
	cmd.Flags().StringVar(&opts.StartDate, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.EndDate, "end", "", "end date (YYYY-MM-DD)")
	for _, f := range []string{"employer", "freelancer", "rate", "start", "end"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func contractListCmd() *cobra.Command {
	var f repo.ContractFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListContracts(ctx, f, actor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Employer", "Freelancer", "Rate", "Start", "End", "Status")
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.EmployerID, c.FreelancerID, c.HourlyRate, c.StartDate, c.EndDate, c.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.EmployerID, "employer", "", "employer filter")
	cmd.Flags().StringVar(&f.FreelancerID, "freelancer", "", "freelancer filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	return cmd
}

func contractShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <contract-id>",
		Short: "Show a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetContract(ctx, id, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
}

func contractGateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gate <contract-id>",
		Short: "Show which contract actions are currently allowed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g, err := e.Gate(ctx, id, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(g)
			})
		},
	}
}

func contractCancelCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <contract-id>",
		Short: "Request cancellation of a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cc, err := e.RequestCancellation(ctx, id, reason, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(cc)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the contract should end")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func contractResolveCancelCmd() *cobra.Command {
	var decline bool
	cmd := &cobra.Command{
		Use:   "resolve-cancel <contract-id>",
		Short: "Approve (default) or decline a pending cancellation request (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cc, err := e.ResolveCancellation(ctx, id, !decline, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(cc)
			})
		},
	}
	cmd.Flags().BoolVar(&decline, "decline", false, "decline instead of approving")
	return cmd
}

func contractCompleteCmd() *cobra.Command {
	var rating int
	var feedback string
	cmd := &cobra.Command{
		Use:   "complete <contract-id>",
		Short: "Complete a contract with a rating and feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CompleteContract(ctx, id, rating, feedback, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().IntVar(&rating, "rating", 0, "rating for the freelancer")
	cmd.Flags().StringVar(&feedback, "feedback", "", "written feedback")
	_ = cmd.MarkFlagRequired("rating")
	_ = cmd.MarkFlagRequired("feedback")
	return cmd
}

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Manage contract tasks"}
	t.AddCommand(taskCreateCmd())
	t.AddCommand(taskListCmd())
	t.AddCommand(taskShowCmd())
	t.AddCommand(taskEditCmd())
	t.AddCommand(taskSubmitCmd())
	t.AddCommand(taskApproveCmd())
	t.AddCommand(taskRejectCmd())
	t.AddCommand(taskDeleteCmd())
	return t
}

func taskFieldFlags(cmd *cobra.Command, f *engine.TaskFields) {
	cmd.Flags().StringVar(&f.Name, "name", "", "task name")
	cmd.Flags().StringVar(&f.Instruction, "instruction", "", "what to do")
	cmd.Flags().StringVar(&f.SubmissionRequirement, "requirement", "", "what to hand in")
	cmd.Flags().Float64Var(&f.Hours, "hours", 0, "billable hours")
	cmd.Flags().StringVar(&f.DueDate, "due", "", "due date (YYYY-MM-DD)")
	for _, name := range []string{"name", "instruction", "requirement", "hours", "due"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task and put its pay in escrow",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = actor()
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().Int64Var(&opts.ContractID, "contract", 0, "contract id")
	_ = cmd.MarkFlagRequired("contract")
	taskFieldFlags(cmd, &opts.TaskFields)
	return cmd
}

func taskListCmd() *cobra.Command {
	var contractID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tasks of a contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.ListTaskFileData(ctx, "", "", contractID, actor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				taskTable(tasks)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&contractID, "contract", 0, "contract id")
	_ = cmd.MarkFlagRequired("contract")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, id, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskEditCmd() *cobra.Command {
	var f engine.TaskFields
	cmd := &cobra.Command{
		Use:   "edit <task-id>",
		Short: "Edit a pending or submitted task; escrow follows the new pay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.EditTask(ctx, id, f, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	taskFieldFlags(cmd, &f)
	return cmd
}

func taskSubmitCmd() *cobra.Command {
	var note string
	var paths, keep []string
	var update bool
	cmd := &cobra.Command{
		Use:   "submit <task-id>",
		Short: "Submit work for a task, or update a submission with --update",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			files, err := readFiles(paths)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var t domain.Task
				if update {
					t, err = e.UpdateSubmission(ctx, engine.UpdateSubmissionOptions{
						TaskID: id, Note: note, KeepFileIDs: keep, Files: files, ActorID: actor(),
					})
				} else {
					t, err = e.SubmitTask(ctx, engine.SubmitOptions{TaskID: id, Note: note, Files: files, ActorID: actor()})
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "submission note")
	cmd.Flags().StringSliceVar(&paths, "file", nil, "file to attach (repeatable)")
	cmd.Flags().StringSliceVar(&keep, "keep", nil, "existing file id to keep when updating (repeatable)")
	cmd.Flags().BoolVar(&update, "update", false, "update an existing submission")
	_ = cmd.MarkFlagRequired("note")
	return cmd
}

func taskApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <task-id>",
		Short: "Approve submitted work and release the payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, st, err := e.ApproveTask(ctx, id, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"task": t, "settlement": st})
			})
		},
	}
}

func taskRejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <task-id>",
		Short: "Send submitted work back with a reason",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.RejectTask(ctx, id, reason, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a pending task and refund its escrow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				refunded, err := e.DeleteTask(ctx, id, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"task_id": id, "refunded": refunded})
			})
		},
	}
}

func settleCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Release processing payments now instead of waiting for the server worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.SettlePending(ctx, limit)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"settled": n})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum settlements to process")
	return cmd
}

func ticketCmd() *cobra.Command {
	t := &cobra.Command{Use: "ticket", Short: "Support tickets"}
	t.AddCommand(ticketCreateCmd())
	t.AddCommand(ticketListCmd())
	t.AddCommand(ticketShowCmd())
	t.AddCommand(ticketAssignCmd())
	t.AddCommand(ticketStatusCmd())
	t.AddCommand(ticketReplyCmd())
	return t
}

func ticketCreateCmd() *cobra.Command {
	var opts engine.TicketCreateOptions
	var paths []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a support ticket on behalf of --actor-id",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := readFiles(paths)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.Attachments = files
				opts.ActorID = actor()
				t, err := e.CreateTicket(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "subject")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "low, medium or high (premium accounts get premium)")
	cmd.Flags().StringSliceVar(&paths, "file", nil, "attachment (repeatable)")
	for _, f := range []string{"subject", "description", "category"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func ticketListCmd() *cobra.Command {
	var f repo.TicketFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListTickets(ctx, f, actor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Subject", "Category", "Priority", "Status", "Creator", "Assignee")
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Subject, t.Category, t.Priority, t.Status, t.CreatorID, deref(t.AssigneeID)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.CreatorID, "creator", "", "creator filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "priority filter")
	cmd.Flags().StringVar(&f.Category, "category", "", "category filter")
	cmd.Flags().StringVar(&f.Query, "q", "", "search subject and description")
	return cmd
}

func ticketShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <ticket-id>",
		Short: "Show a ticket with its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTicket(ctx, id, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func ticketAssignCmd() *cobra.Command {
	var assignee string
	cmd := &cobra.Command{
		Use:   "assign <ticket-id>",
		Short: "Assign a ticket to an admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.AssignTicket(ctx, id, assignee, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&assignee, "to", "", "admin account id (defaults to the acting admin)")
	return cmd
}

func ticketStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status <ticket-id>",
		Short: "Move a ticket to another status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.SetTicketStatus(ctx, id, status, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&status, "set", "", "open, in_progress, resolved or closed")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

func ticketReplyCmd() *cobra.Command {
	var body string
	cmd := &cobra.Command{
		Use:   "reply <ticket-id>",
		Short: "Add a message to a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.AddTicketMessage(ctx, id, body, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&body, "body", "", "message")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}

func companyCmd() *cobra.Command {
	c := &cobra.Command{Use: "company", Short: "Employer company verification"}
	c.AddCommand(companyShowCmd())
	c.AddCommand(companyListCmd())
	c.AddCommand(companyVerifyCmd())
	return c
}

func companyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <owner-id>",
		Short: "Show a company profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetCompany(ctx, args[0], actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
}

func companyListCmd() *cobra.Command {
	var f repo.CompanyFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List company profiles (the review queue with --status pending)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListCompanies(ctx, f, actor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Owner", "Name", "Registration", "Status", "Updated")
				for _, c := range items {
					tw.AppendRow(table.Row{c.OwnerID, c.Name, c.RegistrationNumber, c.Status, c.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Query, "q", "", "search name and registration number")
	return cmd
}

func companyVerifyCmd() *cobra.Command {
	var reject string
	cmd := &cobra.Command{
		Use:   "verify <owner-id>",
		Short: "Verify a pending company, or reject it with --reject <reason>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			approve := !cmd.Flags().Changed("reject")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.ReviewCompany(ctx, args[0], approve, reject, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&reject, "reject", "", "reject with this reason")
	return cmd
}

func txnCmd() *cobra.Command {
	t := &cobra.Command{Use: "txn", Short: "Payment records"}
	t.AddCommand(txnListCmd())
	return t
}

func txnListCmd() *cobra.Command {
	var f engine.TransactionFilter
	cmd := &cobra.Command{
		Use:   "list <account-id>",
		Short: "List an account's ledger entries with totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, sum, err := e.ListTransactions(ctx, args[0], f, actor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"items": items, "summary": sum})
				}
				tw := newTable("ID", "When", "Kind", "Amount", "Contract", "Task", "Note")
				for _, le := range items {
					tw.AppendRow(table.Row{le.ID, le.CreatedAt, le.Kind, le.Amount, optionalID(le.ContractID), optionalID(le.TaskID), le.Note})
				}
				tw.AppendFooter(table.Row{"", "", "balance", sum.Balance, "", "", fmt.Sprintf("earned %d / spent %d", sum.TotalEarned, sum.TotalSpent)})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Kind, "kind", "", "entry kind filter")
	cmd.Flags().Int64Var(&f.ContractID, "contract", 0, "contract filter")
	cmd.Flags().StringVar(&f.Query, "q", "", "search notes")
	cmd.Flags().StringVar(&f.From, "from", "", "from date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&f.To, "to", "", "to date, inclusive")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum entries")
	return cmd
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
