package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mayugoro/xray/bootstrap"
	"github.com/mayugoro/xray/database"
	"github.com/mayugoro/xray/link"
	"github.com/mayugoro/xray/util/sys"
	"github.com/mayugoro/xray/web/service"
	"github.com/mayugoro/xray/xray"
)

// CLI 颜色常量
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
)

func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, Red+err.Error()+Reset)
	os.Exit(1)
}

// openAccounts 只构建账户服务，不启动 bot 与后台任务
func openAccounts() (*service.AccountService, error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return nil, err
	}
	store, err := database.OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	return bootstrap.NewApp(cfg, store).Accounts, nil
}

func printLink(accountID, qrFile string, showJSON bool) error {
	accounts, err := openAccounts()
	if err != nil {
		return err
	}
	view, err := accounts.Get(accountID)
	if err != nil {
		return err
	}

	fmt.Println(view.Link)
	if view.Expired {
		fmt.Println(Yellow + "account expired on " + view.ExpiryDate.Format("2006-01-02") + Reset)
	}
	if showJSON {
		if err := printDecoded(view.Link); err != nil {
			return err
		}
	}
	if qrFile == "" {
		return nil
	}
	png, err := link.QRCode(view.Link)
	if err != nil {
		return err
	}
	if err := sys.AtomicWriteFile(qrFile, png, 0o644); err != nil {
		return err
	}
	fmt.Println(Green + "QR code written to " + qrFile + Reset)
	return nil
}

func printDecoded(raw string) error {
	d, err := link.Decode(raw)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func printReconcile() error {
	accounts, err := openAccounts()
	if err != nil {
		return err
	}
	report, err := accounts.Reconcile()
	if err != nil {
		return err
	}
	printReport(report)
	if !report.Consistent() {
		os.Exit(1)
	}
	return nil
}

func printReport(report *xray.ReconcileReport) {
	if report.Consistent() {
		fmt.Println(Green + "account records and xray config are consistent" + Reset)
		return
	}
	for _, id := range report.MissingInConfig {
		fmt.Println(Yellow+"missing in config:"+Reset, id)
	}
	for _, c := range report.Orphans {
		fmt.Println(Yellow+"orphan client:"+Reset, c.Email, c.ID)
	}
	for _, id := range report.LabelMismatch {
		fmt.Println(Yellow+"label mismatch:"+Reset, id)
	}
}

// migrateDb 把 users.json 中的账户复制到 sqlite，之后设置 DB_DRIVER=sqlite 即可切换
func migrateDb(from, to string, overwrite bool) error {
	isDB, err := database.IsSQLiteFile(from)
	if err != nil {
		return err
	}
	if isDB {
		return fmt.Errorf("%s is already a sqlite database", from)
	}
	db, err := database.InitDB(to, false)
	if err != nil {
		return err
	}
	dst := database.NewSQLiteStore(db)
	defer dst.Close()

	report, err := database.MigrateAccounts(database.NewJSONStore(from), dst, overwrite)
	if err != nil {
		return err
	}
	fmt.Printf(Green+"copied %d accounts into %s"+Reset+"\n", report.Copied, to)
	for _, id := range report.Skipped {
		fmt.Println(Yellow+"skipped existing account:"+Reset, id)
	}
	return nil
}
