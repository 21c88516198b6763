package invoice

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		extractor   *mockExtractor
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		extractor = newMockExtractor()
		service = NewService(db, storage, extractor)
		auth = BasicAuth{}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleVerifyInvoice", func() {
		post := func(payload any) *http.Response {
			body, err := json.Marshal(payload)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.Post(ghttpServer.URL()+"/api/invoices", "application/json", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		When("the payload names an unknown vendor", func() {
			It("should return the computed flags with 201", func() {
				resp := post(matchingInvoice())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var response struct {
					Message   string `json:"message"`
					InvoiceID string `json:"invoice_id"`
					Flags     Flags  `json:"flags"`
				}
				Expect(json.NewDecoder(resp.Body).Decode(&response)).To(Succeed())
				Expect(response.InvoiceID).NotTo(BeEmpty())
				Expect(response.Flags.IncorrectVendorInfo).To(BeTrue())
				Expect(response.Flags.DuplicateInvoice).To(Equal(FlagNotEvaluated))
			})

			It("should persist the invoice", func() {
				resp := post(matchingInvoice())
				resp.Body.Close()
				Expect(db.invoices).To(HaveLen(1))
			})
		})

		When("the payload matches a registered vendor", func() {
			BeforeEach(func() {
				db.vendors["vendor-1"] = trustedVendor()
			})

			It("should evaluate every check", func() {
				resp := post(matchingInvoice())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var response struct {
					Flags Flags `json:"flags"`
				}
				Expect(json.NewDecoder(resp.Body).Decode(&response)).To(Succeed())
				Expect(response.Flags.IncorrectVendorInfo).To(BeFalse())
				Expect(response.Flags.DuplicateInvoice).To(Equal(FlagFalse))
				Expect(response.Flags.UnusualAmounts).To(Equal(FlagFalse))
			})
		})

		When("the vendor email is missing", func() {
			It("should return 400", func() {
				resp := post(&ExtractedInvoice{})
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})

			It("should write nothing", func() {
				resp := post(&ExtractedInvoice{})
				resp.Body.Close()
				Expect(db.invoices).To(BeEmpty())
			})
		})

		When("the body is not JSON", func() {
			It("should return 400", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/invoices", "application/json", bytes.NewReader([]byte("not json")))
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleUnflagInvoice", func() {
		put := func(id string) *http.Response {
			req, err := http.NewRequest("PUT", ghttpServer.URL()+"/api/invoices/"+id+"/unflag", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		When("the invoice does not exist", func() {
			It("should return 404", func() {
				resp := put("missing")
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})

		When("the invoice exists", func() {
			BeforeEach(func() {
				db.invoices["inv-1"] = &Invoice{
					ID:          "inv-1",
					VendorEmail: "billing@acme.test",
					Flags:       Flags{DuplicateInvoice: FlagTrue, UnusualAmounts: FlagFalse},
				}
			})

			It("should return the unflagged invoice", func() {
				resp := put("inv-1")
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var response struct {
					Message string   `json:"message"`
					Invoice *Invoice `json:"invoice"`
				}
				Expect(json.NewDecoder(resp.Body).Decode(&response)).To(Succeed())
				Expect(response.Invoice.Flags.DuplicateInvoice).To(Equal(FlagFalse))
			})

			It("should persist the cleared flags", func() {
				resp := put("inv-1")
				resp.Body.Close()
				Expect(db.invoices["inv-1"].Flags.DuplicateInvoice).To(Equal(FlagFalse))
			})
		})
	})

	Describe("handleInboundEmail", func() {
		var email InboundEmail

		post := func() *http.Response {
			body, err := json.Marshal(email)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.Post(ghttpServer.URL()+"/api/inbound", "application/json", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		BeforeEach(func() {
			email = InboundEmail{
				From:     "billing@acme.test",
				TextBody: "invoice attached",
				Attachments: []InboundAttachment{
					{
						Name:        "invoice.pdf",
						Content:     base64.StdEncoding.EncodeToString([]byte("fake pdf")),
						ContentType: "application/pdf",
					},
				},
			}
		})

		When("the payload is complete", func() {
			It("should run the pipeline and return 201", func() {
				resp := post()
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var inv Invoice
				Expect(json.NewDecoder(resp.Body).Decode(&inv)).To(Succeed())
				Expect(inv.VendorEmail).To(Equal("billing@acme.test"))
				Expect(inv.InvoiceNumber).To(Equal(strp("INV-001")))
			})
		})

		When("the payload has no attachments", func() {
			BeforeEach(func() {
				email.Attachments = nil
			})

			It("should return 400", func() {
				resp := post()
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the attachment is not valid base64", func() {
			BeforeEach(func() {
				email.Attachments[0].Content = "not base64!!!"
			})

			It("should return 400", func() {
				resp := post()
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleAddVendor", func() {
		post := func(vendor *Vendor) *http.Response {
			body, err := json.Marshal(vendor)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.Post(ghttpServer.URL()+"/api/vendors", "application/json", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		When("the vendor is valid", func() {
			It("should return 201 and store the vendor", func() {
				resp := post(&Vendor{Email: "billing@acme.test", BankName: strp("First National")})
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(db.vendors).To(HaveLen(1))
			})
		})

		When("the vendor has no email", func() {
			It("should return 400", func() {
				resp := post(&Vendor{Name: strp("Acme Corp")})
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleListInvoices", func() {
		BeforeEach(func() {
			db.invoices["i1"] = &Invoice{ID: "i1", VendorEmail: "billing@acme.test"}
			db.invoices["i2"] = &Invoice{ID: "i2", VendorEmail: "other@vendor.test"}
		})

		It("should return all invoices", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/invoices")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var invoices []*Invoice
			Expect(json.NewDecoder(resp.Body).Decode(&invoices)).To(Succeed())
			Expect(invoices).To(HaveLen(2))
		})
	})

	Describe("handleGetInvoice", func() {
		When("the invoice exists", func() {
			BeforeEach(func() {
				db.invoices["i1"] = &Invoice{ID: "i1", VendorEmail: "billing@acme.test"}
			})

			It("should return the invoice", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices/i1")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			})
		})

		When("the invoice does not exist", func() {
			It("should return 404", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices/missing")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("handleGetInvoiceFile", func() {
		BeforeEach(func() {
			path, err := storage.Save("invoice-i1", "application/pdf", []byte("pdf bytes"))
			Expect(err).NotTo(HaveOccurred())
			db.invoices["i1"] = &Invoice{ID: "i1", VendorEmail: "billing@acme.test", FileURL: &path}
		})

		It("should return the stored document", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/invoices/i1/file")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/pdf"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("pdf bytes"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "pass"}
			setupServer()
		})

		When("no credentials are supplied", func() {
			It("should return 401", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			})
		})

		When("correct credentials are supplied", func() {
			It("should serve the request", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/invoices", nil)
				Expect(err).NotTo(HaveOccurred())
				req.SetBasicAuth("user", "pass")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			})
		})
	})
})
