package integration

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/seedpost/seedpost/internal/app"
	"github.com/seedpost/seedpost/internal/config"
	"github.com/seedpost/seedpost/test-integration/pipeline/helpers"
)

var _ = Describe("Ledger corruption", Label("ledger"), func() {
	var (
		tempDir    string
		ledgerPath string
		listing    *helpers.ListingServer
		bot        *helpers.FakeBotAPI
	)

	BeforeEach(func() {
		tempDir = createTempDir("ledger-test-")
		ledgerPath = filepath.Join(tempDir, "data", "uploaded_history.json")
		Expect(os.MkdirAll(filepath.Dir(ledgerPath), 0750)).To(Succeed())
		Expect(os.WriteFile(ledgerPath, []byte("{not json"), 0600)).To(Succeed())

		listing = helpers.NewListingServer()
		bot = helpers.NewFakeBotAPI()
	})

	AfterEach(func() {
		listing.Close()
		bot.Close()
		cleanupTempDir(tempDir)
	})

	It("should refuse to start and keep the file when onCorrupt is halt", func() {
		configFile := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
			ListingURL:  listing.URL(),
			APIEndpoint: bot.Endpoint(),
			LedgerPath:  ledgerPath,
			OnCorrupt:   config.OnCorruptHalt,
		})
		serverHelper, err := helpers.NewServerTestHelper(ctx, configFile, helpers.NewFakeEngine(nil))
		Expect(err).NotTo(HaveOccurred())

		_, err = serverHelper.BuildApp()
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, app.ErrLedgerCorrupted)).To(BeTrue())

		data, err := os.ReadFile(ledgerPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("{not json"))
	})

	It("should start empty and warn the operator when onCorrupt is continue", func() {
		configFile := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
			ListingURL:  listing.URL(),
			APIEndpoint: bot.Endpoint(),
			LedgerPath:  ledgerPath,
		})
		serverHelper, err := helpers.NewServerTestHelper(ctx, configFile, helpers.NewFakeEngine(nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(serverHelper.StartServer()).To(Succeed())
		defer func() {
			_ = serverHelper.StopServer()
		}()
		serverHelper.WaitForServerReady(10 * time.Second)

		Eventually(func() []string { return bot.Messages(helpers.OperatorID) }, 5*time.Second).
			Should(ContainElement(ContainSubstring("unreadable")))

		ledger, err := serverHelper.GetLedger()
		Expect(err).NotTo(HaveOccurred())
		Expect(ledger.Total).To(BeZero())

		moved, err := filepath.Glob(ledgerPath + ".corrupt-*")
		Expect(err).NotTo(HaveOccurred())
		Expect(moved).To(HaveLen(1))
	})
})
